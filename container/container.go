package container

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"procurement-client/chain"
	"procurement-client/config"
	"procurement-client/ipfs"
	"procurement-client/metrics"
	"procurement-client/repository"
	"procurement-client/secrets"
	"procurement-client/services"
	"procurement-client/session"
	"procurement-client/storage/rolestore"
	"procurement-client/workflow"
)

// Container holds all application dependencies
type Container struct {
	Config   *config.Config
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Secrets  secrets.Source

	// Chain
	Backend  chain.Backend
	Gateway  *chain.Gateway
	Approver *chain.TokenApprover

	// Files
	Files  *ipfs.Store
	Pinata *ipfs.PinataClient

	// Session and read side
	Roles      *session.RoleResolver
	Session    *session.Controller
	Repository *repository.Repository

	// Services
	QRCodeService *services.QRCodeService
	HealthService *services.HealthService

	closers []func()
}

// NewContainer dials the RPC endpoint and builds every dependency.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	client, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Chain.RPCURL, err)
	}
	c, err := NewContainerWithBackend(ctx, cfg, client)
	if err != nil {
		client.Close()
		return nil, err
	}
	c.closers = append(c.closers, client.Close)
	return c, nil
}

// NewContainerWithBackend builds the container on an existing backend.
func NewContainerWithBackend(ctx context.Context, cfg *config.Config, backend chain.Backend) (*Container, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	src, err := secrets.New(ctx, cfg.Secrets.Provider, cfg.Secrets.AWSRegion)
	if err != nil {
		return nil, err
	}

	c := &Container{
		Config:        cfg,
		Registry:      reg,
		Metrics:       m,
		Secrets:       src,
		Backend:       backend,
		QRCodeService: services.NewQRCodeService(cfg.Chain.ExplorerURL),
		HealthService: services.NewHealthService(),
	}

	opts := []chain.Option{chain.WithMetrics(m)}
	if cfg.Chain.GasLimit > 0 {
		opts = append(opts, chain.WithGasLimit(cfg.Chain.GasLimit))
	}
	signer, err := c.loadSigner(ctx)
	if err != nil {
		return nil, err
	}
	if signer != nil {
		opts = append(opts, chain.WithSigner(signer))
	}

	contract := common.HexToAddress(cfg.Chain.ContractAddress)
	c.Gateway = chain.NewGateway(backend, contract, opts...)
	if cfg.Chain.TokenAddress != "" {
		c.Approver = chain.NewTokenApprover(backend, common.HexToAddress(cfg.Chain.TokenAddress), contract, opts...)
	}

	if err := c.buildFileStore(ctx); err != nil {
		return nil, err
	}

	store, err := rolestore.Open(ctx, rolestore.Options{
		Driver:    cfg.RoleStore.Driver,
		Path:      cfg.RoleStore.Path,
		RedisAddr: cfg.RoleStore.RedisAddr,
		PGDSN:     cfg.RoleStore.PGDSN,
	})
	if err != nil {
		return nil, err
	}
	switch s := store.(type) {
	case *rolestore.RedisStore:
		c.closers = append(c.closers, func() { _ = s.Close() })
	case *rolestore.PGStore:
		c.closers = append(c.closers, s.Close)
	}

	c.Roles = session.NewRoleResolver(store, m)
	c.Session = session.NewController(ctx, c.Roles)
	if signer != nil {
		c.Session.Connect(signer.Address())
	}
	c.Repository = repository.New(c.Gateway, c.Session, m)
	c.closers = append(c.closers, c.Repository.Close)

	log.Printf("Container ready: contract %s, file store %s, role store %s",
		contract.Hex(), c.Files.Provider().Name(), cfg.RoleStore.Driver)
	return c, nil
}

// loadSigner resolves the signing key. A missing key leaves the client
// read-only.
func (c *Container) loadSigner(ctx context.Context) (chain.Signer, error) {
	key, err := c.Secrets.Secret(ctx, c.Config.Secrets.SignerKeySecret)
	if errors.Is(err, secrets.ErrSecretNotFound) || errors.Is(err, secrets.ErrSecretEmpty) {
		log.Printf("No signer key configured; running read-only")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load signer key: %w", err)
	}
	signer, err := chain.NewKeySigner(key, big.NewInt(c.Config.Chain.ChainID))
	if err != nil {
		return nil, err
	}
	return signer, nil
}

func (c *Container) buildFileStore(ctx context.Context) error {
	cfg := c.Config.FileStore
	switch cfg.Provider {
	case "kubo":
		c.Files = ipfs.NewStore(ipfs.NewKuboClient(cfg.IPFSAPIURL, cfg.HTTPTimeout), c.Metrics)
		return nil
	default:
		jwt, err := c.Secrets.Secret(ctx, c.Config.Secrets.PinataJWTSecret)
		if err != nil {
			return fmt.Errorf("load pinata credentials: %w", err)
		}
		pinata, err := ipfs.NewPinataClient(jwt,
			ipfs.WithPinataAPIURL(cfg.PinataAPIURL),
			ipfs.WithPinataGateway(cfg.PinataGatewayURL),
			ipfs.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		)
		if err != nil {
			return err
		}
		c.Pinata = pinata
		c.Files = ipfs.NewStore(pinata, c.Metrics)
		return nil
	}
}

// NewTracker returns a tracker configured from the chain settings.
func (c *Container) NewTracker() *chain.Tracker {
	return chain.NewTracker(c.Backend, chain.TrackerConfig{
		PollInterval:          c.Config.Chain.PollInterval,
		Timeout:               c.Config.Chain.TxTimeout,
		RequiredConfirmations: uint64(c.Config.Chain.RequiredConfirmations),
	}, c.Metrics)
}

// NewSubmissionWorkflow builds a workflow with its own tracker.
func (c *Container) NewSubmissionWorkflow() *workflow.SubmissionWorkflow {
	return workflow.NewSubmission(workflow.SubmissionDeps{
		Account:   c.Session,
		Uploader:  c.Files,
		Chain:     c.Gateway,
		Tracker:   c.NewTracker(),
		Refresher: c.Repository,
		Metrics:   c.Metrics,
	})
}

// NewCreateProjectWorkflow builds an agency workflow with its own tracker.
func (c *Container) NewCreateProjectWorkflow() *workflow.CreateProjectWorkflow {
	deps := workflow.CreateProjectDeps{
		Account:   c.Session,
		Chain:     c.Gateway,
		Tracker:   c.NewTracker(),
		Refresher: c.Repository,
		Metrics:   c.Metrics,
	}
	if c.Approver != nil {
		deps.Approver = c.Approver
	}
	return workflow.NewCreateProject(deps)
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

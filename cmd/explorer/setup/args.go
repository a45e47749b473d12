package setup

import (
	"context"
	"fmt"
	"sync"

	xe "github.com/allfeat/explorer"
	"github.com/allfeat/explorer/address"
	"github.com/allfeat/explorer/config"
	"github.com/allfeat/explorer/ledger"
	"github.com/allfeat/explorer/ledger/demo"
	"github.com/allfeat/explorer/ledger/rpc"
	"github.com/allfeat/explorer/service"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type ContextKey string

const ContextEnv ContextKey = "env"

type Args struct {
	ConfigPath     string
	Rpc            string
	Memory         bool
	Prefix         int
	Format         string
	VerbosityCount int
}

func AddArgs(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", "", "Path to explorer.yaml (may also set EXPLORER_CONFIG).")
	cmd.PersistentFlags().String("rpc", "", "Node websocket url, or a secret reference to it. Overrides rpc_url.")
	cmd.PersistentFlags().Bool("memory", false, "Use an in-memory demo ledger instead of a node.")
	cmd.PersistentFlags().Int("prefix", -1, "SS58 network prefix. Overrides network.ss58_prefix.")
	cmd.PersistentFlags().String("format", "json", "Output format: json, yaml or toml.")
	cmd.PersistentFlags().CountP("verbose", "v", "Set verbosity.")
}

func ArgsFromCmd(cmd *cobra.Command) (*Args, error) {
	configPath, _ := cmd.Flags().GetString("config")
	rpcUrl, _ := cmd.Flags().GetString("rpc")
	memory, _ := cmd.Flags().GetBool("memory")
	prefix, _ := cmd.Flags().GetInt("prefix")
	format, _ := cmd.Flags().GetString("format")
	count, _ := cmd.Flags().GetCount("verbose")
	switch format {
	case "json", "yaml", "toml":
	default:
		return nil, fmt.Errorf("invalid --format %q, options: json, yaml, toml", format)
	}
	if prefix > int(address.MaxPrefix) {
		return nil, fmt.Errorf("--prefix must be at most %d", address.MaxPrefix)
	}
	return &Args{
		ConfigPath:     configPath,
		Rpc:            rpcUrl,
		Memory:         memory,
		Prefix:         prefix,
		Format:         format,
		VerbosityCount: count,
	}, nil
}

// Env is shared by every command. The ledger is only opened by commands that need it.
type Env struct {
	Args   *Args
	Config *config.Config

	once    sync.Once
	svc     *service.Service
	chain   *demo.Chain
	closer  func()
	openErr error
}

func NewEnv(args *Args) (*Env, error) {
	cfg, err := config.Load(args.ConfigPath)
	if err != nil {
		return nil, err
	}
	if args.Rpc != "" {
		cfg.RpcUrl = config.Secret(args.Rpc)
	}
	if args.Prefix >= 0 {
		cfg.Network.Ss58Prefix = uint16(args.Prefix)
	}
	return &Env{Args: args, Config: cfg, closer: func() {}}, nil
}

func ConfigureLogger(env *Env) {
	config.ConfigureLogger(env.Config.Log.Level, env.Config.Log.Format)
	if env.Args.VerbosityCount > 0 {
		config.RaiseLevel(env.Args.VerbosityCount)
	}
}

func (env *Env) open(ctx context.Context) (ledger.Reader, error) {
	if env.Args.Memory {
		env.chain = demo.Economy()
		runCtx, cancel := context.WithCancel(context.Background())
		go env.chain.Run(runCtx, env.Config.Ledger.BlockInterval)
		env.closer = cancel
		logrus.WithField("block_interval", env.Config.Ledger.BlockInterval).Info("using in-memory demo ledger")
		return env.chain, nil
	}
	url, err := env.Config.RpcUrl.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load rpc url: %v", err)
	}
	if url == "" {
		return nil, fmt.Errorf("no rpc url configured, set rpc_url or pass --rpc")
	}
	reader, err := rpc.NewReader(url, env.Config.Ledger.PageSize)
	if err != nil {
		return nil, err
	}
	env.closer = reader.Close
	logrus.WithField("page_size", env.Config.Ledger.PageSize).Info("connected to node")
	return reader, nil
}

// Service opens the ledger on first use.
func (env *Env) Service(ctx context.Context) (*service.Service, error) {
	env.once.Do(func() {
		reader, err := env.open(ctx)
		if err != nil {
			env.openErr = err
			return
		}
		env.svc, env.openErr = service.New(reader, service.Options{
			Prefix:   env.Prefix(),
			CacheTTL: env.Config.Cache.TTL,
		})
	})
	return env.svc, env.openErr
}

func (env *Env) Prefix() xe.NetworkTag {
	return env.Config.NetworkTag()
}

func (env *Env) Close() {
	env.closer()
}

func WrapEnv(ctx context.Context, env *Env) context.Context {
	return context.WithValue(ctx, ContextEnv, env)
}

func UnwrapEnv(ctx context.Context) *Env {
	return ctx.Value(ContextEnv).(*Env)
}

// ParseAddress validates addr against the configured network without opening the ledger.
func (env *Env) ParseAddress(addr string) (xe.AccountKey, error) {
	return address.Parse(addr, env.Prefix())
}

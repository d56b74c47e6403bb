// Command brewrec 在快照数据上运行啤酒推荐与离线评估。
//
// 用法：
//
//	brewrec [-config brewrec.yaml] [-ratings ratings.json] <command> [flags]
//
// 命令：
//
//	import      把 -ratings 指定的评分日志写成快照（可选同时写入分解结果）
//	recommend   -strategy content -seeds "a,b,c,d,e" 或 -user u
//	evaluate    -strategy content -metric percentile [-users u1,u2]
//	search      <keyword>
//	similar     -user u -n 5
//	styles      -n 5
//	publish     -n 10 把每个物品的相似物品写成有序集合
//	strategies  列出可用策略
//
// import 与 publish 需要 badger 或 redis 后端；默认的 memory 后端只能配合 -ratings 使用。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/rushteam/brewrec/config"
	"github.com/rushteam/brewrec/core"
	"github.com/rushteam/brewrec/matrix"
	"github.com/rushteam/brewrec/service"
	"github.com/rushteam/brewrec/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "brewrec:", err)
		os.Exit(1)
	}
}

type app struct {
	cfg       *config.AppConfig
	logger    zerolog.Logger
	store     core.Store
	snapshots *store.SnapshotStore
	ratings   string
	out       io.Writer
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("brewrec", flag.ContinueOnError)
	configPath := global.String("config", "", "path to the YAML config file")
	ratingsPath := global.String("ratings", "", "rating log (JSON array) used instead of the stored snapshot")
	global.Usage = func() {
		fmt.Fprintln(global.Output(), "usage: brewrec [-config file] [-ratings file] <import|recommend|evaluate|search|similar|styles|publish|strategies> [flags]")
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return err
	}

	kv, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer kv.Close()

	a := &app{
		cfg:       cfg,
		logger:    logger,
		store:     kv,
		snapshots: store.NewSnapshotStore(kv, cfg.Store.Prefix),
		ratings:   *ratingsPath,
		out:       out,
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "import":
		return a.importCmd(ctx, rest)
	case "recommend":
		return a.recommendCmd(ctx, rest)
	case "evaluate":
		return a.evaluateCmd(ctx, rest)
	case "search":
		return a.searchCmd(ctx, rest)
	case "similar":
		return a.similarCmd(ctx, rest)
	case "styles":
		return a.stylesCmd(ctx, rest)
	case "publish":
		return a.publishCmd(ctx, rest)
	case "strategies":
		svc, err := a.service(ctx)
		if err != nil {
			return err
		}
		return a.print(svc.Strategies())
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// openStore 按配置打开快照存储后端。
func openStore(ctx context.Context, cfg config.StoreConfig, logger zerolog.Logger) (core.Store, error) {
	switch cfg.Backend {
	case "redis":
		s, err := store.NewRedisStore(ctx, store.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "badger":
		s, err := store.OpenBadgerStore(store.BadgerOptions{
			Path:     cfg.Badger.Path,
			InMemory: cfg.Badger.InMemory,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return store.NewMemoryStore(), nil
	}
}

func readRatings(path string) (core.RatingLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ratings: %w", err)
	}
	var log core.RatingLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("decode ratings %s: %w", path, err)
	}
	return log, nil
}

// snapshot 优先读取 -ratings 文件，否则从存储加载。
func (a *app) snapshot(ctx context.Context) (*store.Snapshot, error) {
	if a.ratings == "" {
		if !a.persistent() {
			return nil, core.InvalidInputError(core.ModuleService,
				"no -ratings given and store %s holds no snapshot; pass -ratings or set store.backend to badger or redis", a.cfg.Store.Backend)
		}
		snap, err := a.snapshots.Load(ctx)
		if core.IsNotFound(err) {
			return nil, fmt.Errorf("%w (run `brewrec -ratings file import` first)", err)
		}
		return snap, err
	}
	log, err := readRatings(a.ratings)
	if err != nil {
		return nil, err
	}
	u, err := matrix.FromRatings(log)
	if err != nil {
		return nil, err
	}
	return &store.Snapshot{Ratings: log, Utility: u}, nil
}

// persistent 判断存储后端的数据能否留到下一次命令。
func (a *app) persistent() bool {
	switch a.cfg.Store.Backend {
	case "redis":
		return true
	case "badger":
		return !a.cfg.Store.Badger.InMemory
	default:
		return false
	}
}

// requirePersistent 拒绝在 memory 等进程内后端上执行写快照的命令。
func (a *app) requirePersistent(cmd string) error {
	if a.persistent() {
		return nil
	}
	return core.InvalidInputError(core.ModuleService,
		"%s: store %s is discarded on exit; set store.backend to badger (with store.badger.path) or redis", cmd, a.cfg.Store.Backend)
}

func (a *app) service(ctx context.Context) (*service.Service, error) {
	snap, err := a.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := service.SettingsFromConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	settings.Store = a.store
	return service.New(snap, settings, a.logger)
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (a *app) importCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	factorize := fs.Bool("factorize", false, "also store the latent factors")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requirePersistent("import"); err != nil {
		return err
	}
	if a.ratings == "" {
		return errors.New("import needs -ratings")
	}
	snap, err := a.snapshot(ctx)
	if err != nil {
		return err
	}
	snap.Similarity = matrix.ItemCosine(snap.Utility)
	if *factorize {
		svc, err := a.service(ctx)
		if err != nil {
			return err
		}
		if snap.Factors, err = svc.Factors(ctx); err != nil {
			return err
		}
	}
	if err := a.snapshots.Save(ctx, snap); err != nil {
		return err
	}
	a.logger.Info().
		Str("backend", a.store.Name()).
		Int("users", snap.Utility.NumUsers()).
		Int("items", snap.Utility.NumItems()).
		Bool("factors", snap.Factors != nil).
		Msg("snapshot saved")
	return nil
}

func (a *app) recommendCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("recommend", flag.ContinueOnError)
	strategy := fs.String("strategy", service.StrategyContent, "recommendation strategy")
	seeds := fs.String("seeds", "", "comma separated seed items")
	user := fs.String("user", "", "existing user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	svc, err := a.service(ctx)
	if err != nil {
		return err
	}

	var res *service.Result
	if *user != "" {
		res, err = svc.RecommendExisting(ctx, *strategy, *user)
	} else {
		res, err = svc.Recommend(ctx, *strategy, splitList(*seeds))
	}
	if err != nil {
		return err
	}
	return a.print(map[string]any{
		"request_id": res.RequestID,
		"strategy":   res.Strategy,
		"seeds":      res.Seeds,
		"items":      res.IDs(),
	})
}

func (a *app) evaluateCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	strategy := fs.String("strategy", service.StrategyContent, "strategy to evaluate")
	metric := fs.String("metric", a.cfg.Evaluate.Metric, "percentile or residual")
	users := fs.String("users", "", "comma separated users (default: every user in the rating log)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	e, err := svc.Evaluator(*strategy, *metric)
	if err != nil {
		return err
	}
	list := splitList(*users)
	if len(list) == 0 {
		list = e.Ratings.Users()
	}
	report, err := e.EvaluateAll(ctx, list, a.cfg.Evaluate.Concurrency)
	if err != nil {
		return err
	}

	scores := make(map[string]any, len(report.Users))
	for i, u := range report.Users {
		scores[u] = jsonScore(report.Scores[i])
	}
	return a.print(map[string]any{
		"strategy":  *strategy,
		"metric":    *metric,
		"mean":      jsonScore(report.Mean),
		"defined":   report.Defined,
		"undefined": report.Undefined,
		"scores":    scores,
	})
}

// jsonScore 把 NaN 输出为 null。
func jsonScore(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func (a *app) searchCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("search needs a keyword")
	}
	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	return a.print(svc.Search(strings.Join(args, " ")))
}

func (a *app) similarCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("similar", flag.ContinueOnError)
	user := fs.String("user", "", "existing user id")
	n := fs.Int("n", 5, "number of users")
	if err := fs.Parse(args); err != nil {
		return err
	}
	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	nbs, err := svc.SimilarUsers(ctx, *user, *n)
	if err != nil {
		return err
	}
	return a.print(nbs)
}

func (a *app) stylesCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("styles", flag.ContinueOnError)
	n := fs.Int("n", 5, "styles per latent feature")
	if err := fs.Parse(args); err != nil {
		return err
	}
	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	styles, err := svc.Styles(ctx, *n)
	if err != nil {
		return err
	}
	return a.print(styles)
}

func (a *app) publishCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	n := fs.Int("n", 10, "neighbors per item")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requirePersistent("publish"); err != nil {
		return err
	}
	snap, err := a.snapshot(ctx)
	if err != nil {
		return err
	}
	if snap.Similarity == nil {
		snap.Similarity = matrix.ItemCosine(snap.Utility)
	}
	if err := a.snapshots.PublishNeighbors(ctx, snap.Similarity, *n); err != nil {
		return err
	}
	a.logger.Info().Int("items", snap.Similarity.Len()).Int("n", *n).Msg("neighbors published")
	return nil
}

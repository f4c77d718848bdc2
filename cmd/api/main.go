package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"inkwell.blog/internal/auth"
	"inkwell.blog/internal/blog"
	"inkwell.blog/internal/config"
	"inkwell.blog/internal/httpapi"
	"inkwell.blog/internal/media"
	"inkwell.blog/internal/obs"
	"inkwell.blog/internal/store/mongo"
	"inkwell.blog/internal/store/pg"
)

var version = "0.1.0"

type stores struct {
	users auth.UserStore
	posts blog.Store
	ping  httpapi.Pinger
	close func()
}

func main() {
	flags := pflag.NewFlagSet("inkwell-api", pflag.ExitOnError)
	envFile := flags.String("env-file", ".env", "optional dotenv file read before the environment")
	showVersion := flags.Bool("version", false, "print version and exit")
	_ = flags.Parse(os.Args[1:])

	if *showVersion {
		fmt.Println(version)
		return
	}

	log := obs.Logger()
	cfg, err := config.Load(*envFile)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	obs.SetLevel(cfg.LogLevel)
	obs.Init()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	st, err := openStores(ctx, cfg)
	cancel()
	if err != nil {
		log.WithError(err).WithField("driver", cfg.StoreDriver).Fatal("open store")
	}
	defer st.close()

	gateway, uploadDir, err := openMedia(cfg)
	if err != nil {
		log.WithError(err).WithField("driver", cfg.Media.Driver).Fatal("open media gateway")
	}
	if cfg.Media.Driver == config.MediaNone {
		log.Warn("image uploads are disabled: set CLOUDINARY_* or MEDIA_DRIVER=local")
	}
	gateway = media.Bounded(gateway, cfg.Media.Timeout)
	obs.InitBuildInfo(version, cfg.StoreDriver, gateway.Name())

	tokens, err := auth.NewTokens(cfg.JWTSecret, auth.WithIssuer(cfg.TokenIssuer), auth.WithTTL(cfg.TokenTTL))
	if err != nil {
		log.WithError(err).Fatal("token service")
	}
	accounts, err := auth.NewService(st.users, tokens, gateway)
	if err != nil {
		log.WithError(err).Fatal("account service")
	}
	posts, err := blog.NewService(st.posts, accounts,
		blog.WithMaxPageSize(cfg.MaxPageSize),
		blog.WithMedia(gateway),
	)
	if err != nil {
		log.WithError(err).Fatal("blog service")
	}

	proxies, err := httpapi.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.WithError(err).Fatal("parse TRUSTED_PROXIES")
	}

	api := httpapi.New(accounts, posts, httpapi.ReadyProbe{Store: st.ping}, httpapi.Options{
		Version:        version,
		CORSOrigins:    cfg.CORSOrigins,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		MaxUploadBytes: cfg.Media.MaxBytes,
		AuthRateBurst:  cfg.AuthRateBurst,
		AuthRatePerSec: cfg.AuthRatePerSec,
		UploadDir:      uploadDir,
		TrustedProxies: proxies,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.WithFields(logrus.Fields{
		"version":   version,
		"addr":      srv.Addr,
		"env":       cfg.Env,
		"store":     cfg.StoreDriver,
		"media":     gateway.Name(),
		"token_ttl": tokens.TTL().String(),
	}).Info("starting inkwell-api")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("shutdown")
	}
	log.Info("stopped")
}

func openStores(ctx context.Context, cfg *config.Config) (stores, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := pg.Open(cfg.DatabaseURL)
		if err != nil {
			return stores{}, err
		}
		if err := db.Ping(ctx); err != nil {
			_ = db.Close()
			return stores{}, fmt.Errorf("ping postgres: %w", err)
		}
		return stores{
			users: db.Users(),
			posts: db.Posts(),
			ping:  db,
			close: func() { _ = db.Close() },
		}, nil
	case config.StoreMongo:
		db, err := mongo.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return stores{}, err
		}
		if err := db.EnsureIndexes(ctx); err != nil {
			_ = db.Close(context.Background())
			return stores{}, err
		}
		return stores{
			users: db.Users(),
			posts: db.Posts(),
			ping:  db,
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = db.Close(ctx)
			},
		}, nil
	default:
		posts := blog.NewInMemory()
		return stores{
			users: auth.NewInMemoryUsers(),
			posts: posts,
			ping:  posts,
			close: func() {},
		}, nil
	}
}

// openMedia returns the configured gateway and, for the local driver, the
// directory to serve under /uploads/.
func openMedia(cfg *config.Config) (media.Gateway, string, error) {
	c := media.Constraints{MaxBytes: cfg.Media.MaxBytes, MaxDimension: cfg.Media.MaxDimension}
	switch cfg.Media.Driver {
	case config.MediaCloudinary:
		g, err := media.NewCloudinary(cfg.Media.CloudName, cfg.Media.APIKey, cfg.Media.APISecret, cfg.Media.Folder, c)
		return g, "", err
	case config.MediaLocal:
		g, err := media.NewLocal(cfg.Media.UploadDir, "/uploads", c)
		if err != nil {
			return nil, "", err
		}
		return g, g.Dir(), nil
	default:
		return media.Disabled{}, "", nil
	}
}

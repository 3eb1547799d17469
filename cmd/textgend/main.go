package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"textgend/internal/common/fsutil"
	"textgend/internal/config"
	"textgend/internal/engine"
	"textgend/internal/generation"
	"textgend/internal/httpapi"
)

// envStr returns the environment value for key, or def when unset.
func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func main() {
	var (
		addr                   string
		configPath             string
		modelPath              string
		contextSize            int
		threads                int
		maxNewTokens           int
		outputSpecialTokens    bool
		defaultIncludeStopSeqs bool
		tlsCertFile            string
		tlsKeyFile             string
		tlsClientCAFile        string
		logLevel               string
	)

	root := &cobra.Command{
		Use:           "textgend",
		Short:         "Text generation server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Config file values fill in anything the flags left at zero.
			if configPath != "" {
				p, err := fsutil.ResolveFile(configPath)
				if err != nil {
					return fmt.Errorf("config file: %w", err)
				}
				cfg, err := config.Load(p)
				if err != nil {
					return fmt.Errorf("load config %s: %w", configPath, err)
				}
				if !cmd.Flags().Changed("addr") && cfg.Addr != "" {
					addr = cfg.Addr
				}
				if !cmd.Flags().Changed("model") && cfg.ModelPath != "" {
					modelPath = cfg.ModelPath
				}
				if !cmd.Flags().Changed("context-size") && cfg.ContextSize != 0 {
					contextSize = cfg.ContextSize
				}
				if !cmd.Flags().Changed("threads") && cfg.Threads != 0 {
					threads = cfg.Threads
				}
				if !cmd.Flags().Changed("max-new-tokens") && cfg.MaxNewTokens != 0 {
					maxNewTokens = cfg.MaxNewTokens
				}
				if !cmd.Flags().Changed("output-special-tokens") {
					outputSpecialTokens = cfg.OutputSpecialTokens
				}
				if !cmd.Flags().Changed("default-include-stop-seqs") {
					defaultIncludeStopSeqs = cfg.DefaultIncludeStopSeqs
				}
				if !cmd.Flags().Changed("tls-cert") && cfg.TLSCertFile != "" {
					tlsCertFile = cfg.TLSCertFile
				}
				if !cmd.Flags().Changed("tls-key") && cfg.TLSKeyFile != "" {
					tlsKeyFile = cfg.TLSKeyFile
				}
				if !cmd.Flags().Changed("tls-client-ca") && cfg.TLSClientCAFile != "" {
					tlsClientCAFile = cfg.TLSClientCAFile
				}
				if !cmd.Flags().Changed("log-level") && cfg.LogLevel != "" {
					logLevel = cfg.LogLevel
				}
				if cfg.MaxBodyBytes > 0 {
					httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
				}
				httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSAllowedOrigins, cfg.CORSAllowedMethods, cfg.CORSAllowedHeaders)
			}

			lvl, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
			log := zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
			httpapi.SetLogger(log)

			if modelPath != "" {
				p, err := fsutil.ExpandHome(modelPath)
				if err != nil {
					return err
				}
				modelPath = p
			}

			eng, err := engine.NewLlama(engine.LlamaOptions{
				ModelPath:   modelPath,
				ContextSize: contextSize,
				Threads:     threads,
			})
			if err != nil {
				return fmt.Errorf("load model %s: %w", modelPath, err)
			}

			svc := generation.New(eng, eng, log, generation.Options{
				MaxNewTokens:           maxNewTokens,
				OutputSpecialTokens:    outputSpecialTokens,
				DefaultIncludeStopSeqs: defaultIncludeStopSeqs,
			})

			baseCtx, cancelBase := context.WithCancel(context.Background())
			defer cancelBase()
			httpapi.SetBaseContext(baseCtx)

			srv := &http.Server{Addr: addr, Handler: httpapi.NewMux(svc)}

			useTLS := tlsCertFile != "" || tlsKeyFile != ""
			if useTLS {
				tlsCfg, err := httpapi.TLSConfig(tlsCertFile, tlsKeyFile, tlsClientCAFile)
				if err != nil {
					return err
				}
				srv.TLSConfig = tlsCfg
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", addr).Str("model", modelPath).Bool("tls", useTLS).Msg("listening")
				var err error
				if useTLS {
					// Cert material already lives in srv.TLSConfig.
					err = srv.ListenAndServeTLS("", "")
				} else {
					err = srv.ListenAndServe()
				}
				if err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return err
			case sig := <-stop:
				log.Info().Str("signal", sig.String()).Msg("shutting down")
			}
			cancelBase()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.Warn().Err(err).Msg("graceful shutdown")
			}
			return nil
		},
	}

	f := root.Flags()
	f.StringVar(&addr, "addr", envStr("TEXTGEND_ADDR", ":8080"), "HTTP listen address, e.g. :8080")
	f.StringVar(&configPath, "config", envStr("TEXTGEND_CONFIG", ""), "Optional config file (.yaml/.yml/.json/.toml)")
	f.StringVar(&modelPath, "model", envStr("TEXTGEND_MODEL", ""), "Path to the *.gguf model file")
	f.IntVar(&contextSize, "context-size", envInt("TEXTGEND_CONTEXT_SIZE", 2048), "Model context window in tokens")
	f.IntVar(&threads, "threads", envInt("TEXTGEND_THREADS", 0), "Inference threads (0=auto)")
	f.IntVar(&maxNewTokens, "max-new-tokens", envInt("TEXTGEND_MAX_NEW_TOKENS", 1024), "Server-wide ceiling for generated tokens per request")
	f.BoolVar(&outputSpecialTokens, "output-special-tokens", envBool("TEXTGEND_OUTPUT_SPECIAL_TOKENS", false), "Keep special tokens in generated text")
	f.BoolVar(&defaultIncludeStopSeqs, "default-include-stop-seqs", envBool("TEXTGEND_DEFAULT_INCLUDE_STOP_SEQS", true), "Include the matched stop sequence in output when requests leave it unset")
	f.StringVar(&tlsCertFile, "tls-cert", envStr("TEXTGEND_TLS_CERT", ""), "TLS certificate PEM file (enables TLS with --tls-key)")
	f.StringVar(&tlsKeyFile, "tls-key", envStr("TEXTGEND_TLS_KEY", ""), "TLS private key PEM file")
	f.StringVar(&tlsClientCAFile, "tls-client-ca", envStr("TEXTGEND_TLS_CLIENT_CA", ""), "Client CA bundle; set to require client certificates")
	f.StringVar(&logLevel, "log-level", envStr("TEXTGEND_LOG_LEVEL", "info"), "Log level: trace|debug|info|warn|error")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "textgend:", err)
		os.Exit(1)
	}
}

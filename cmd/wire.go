package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/arven-dev/botfleet/internal/adapters/consent"
	"github.com/arven-dev/botfleet/internal/adapters/credfile"
	"github.com/arven-dev/botfleet/internal/adapters/msa"
	"github.com/arven-dev/botfleet/internal/adapters/notify"
	"github.com/arven-dev/botfleet/internal/adapters/probe"
	"github.com/arven-dev/botfleet/internal/adapters/proxyfile"
	"github.com/arven-dev/botfleet/internal/adapters/render/statusline"
	"github.com/arven-dev/botfleet/internal/application"
	"github.com/arven-dev/botfleet/internal/ports"
)

type appConfig struct {
	Server       ports.ServerInfo
	StatusCmd    string
	AccountsDir  string
	ProxiesFile  string
	ReportListen string
	NotifyURL    string

	ClientID        string
	BrowserBinary   string
	ConsentTimeout  time.Duration
	IdentityTimeout time.Duration

	ProbeEndpoints []string
	ProbeTimeout   time.Duration
}

type app struct {
	cfg      appConfig
	store    *credfile.Store
	proxySvc *application.ProxyService
	auth     *application.AuthService
	registry *application.Registry
	targets  *application.TargetList
	status   *statusline.Printer
	notifier ports.Notifier
	clock    ports.Clock
}

func wireApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	status := statusline.NewPrinter(os.Stdout)
	clock := ports.SystemClock{}

	store := credfile.NewStore(cfg.AccountsDir)

	list, err := proxyfile.NewList(cfg.ProxiesFile)
	if err != nil {
		return nil, fmt.Errorf("wire proxy list: %w", err)
	}

	prober := probe.NewProber(cfg.ProbeEndpoints, cfg.ProbeTimeout)
	proxySvc := application.NewProxyService(list, prober, status)

	identity := msa.Factory(cfg.ClientID, msa.DefaultEndpoints(), clock, cfg.IdentityTimeout)
	browser := consent.NewBrowser("", cfg.ClientID, consent.ChromiumOpener(cfg.BrowserBinary), cfg.ConsentTimeout)

	auth := application.NewAuthService(store, proxySvc, identity, browser, clock, status)

	return &app{
		cfg:      cfg,
		store:    store,
		proxySvc: proxySvc,
		auth:     auth,
		registry: application.NewRegistry(),
		targets:  application.NewTargetList(),
		status:   status,
		notifier: notify.New(cfg.NotifyURL, nil),
		clock:    clock,
	}, nil
}

func loadConfig() (appConfig, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return appConfig{}, fmt.Errorf("resolve home directory: %w", err)
	}
	baseDir := filepath.Join(homeDir, ".botfleet")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(baseDir)
	v.SetEnvPrefix("BOTFLEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", "hypixel.net")
	v.SetDefault("server.port", 25565)
	v.SetDefault("server.version", "1.8.9")
	v.SetDefault("server.view_distance", 4)
	v.SetDefault("server.status_command", "/locraw")
	v.SetDefault("paths.accounts_dir", filepath.Join(baseDir, "accounts"))
	v.SetDefault("paths.proxies_file", filepath.Join(baseDir, "proxies.txt"))
	v.SetDefault("report.listen", "127.0.0.1:3000")
	v.SetDefault("notify.url", "")
	v.SetDefault("auth.client_id", msa.DefaultClientID)
	v.SetDefault("auth.browser", "chromium")
	v.SetDefault("auth.consent_timeout", "5m")
	v.SetDefault("auth.request_timeout", "30s")
	v.SetDefault("probe.endpoints", probe.DefaultEndpoints())
	v.SetDefault("probe.timeout", "15s")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return appConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	return appConfig{
		Server: ports.ServerInfo{
			Host:         v.GetString("server.host"),
			Port:         v.GetInt("server.port"),
			Version:      v.GetString("server.version"),
			ViewDistance: v.GetInt("server.view_distance"),
		},
		StatusCmd:       v.GetString("server.status_command"),
		AccountsDir:     v.GetString("paths.accounts_dir"),
		ProxiesFile:     v.GetString("paths.proxies_file"),
		ReportListen:    v.GetString("report.listen"),
		NotifyURL:       v.GetString("notify.url"),
		ClientID:        v.GetString("auth.client_id"),
		BrowserBinary:   v.GetString("auth.browser"),
		ConsentTimeout:  v.GetDuration("auth.consent_timeout"),
		IdentityTimeout: v.GetDuration("auth.request_timeout"),
		ProbeEndpoints:  v.GetStringSlice("probe.endpoints"),
		ProbeTimeout:    v.GetDuration("probe.timeout"),
	}, nil
}

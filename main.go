package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/martindstone/martbot/src/commands"
	"github.com/martindstone/martbot/src/dispatcher"
	"github.com/martindstone/martbot/src/linker"
	"github.com/martindstone/martbot/src/pd"
	"github.com/martindstone/martbot/src/slackapi"
	"github.com/martindstone/martbot/src/store"
	"github.com/martindstone/martbot/src/utils"
)

func main() {
	if err := utils.InitEnvironmentVariables(); err != nil {
		log.Warnf("no env file loaded: %v", err)
	}

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	// setup the credential store
	credentials, err := store.NewBolt(cfg.BoltDBPath)
	if err != nil {
		log.Fatalf("failed to open credential store: %v", err)
	}
	defer credentials.Close()

	// setup api clients
	pdClient := pd.NewClient()
	slackClient := slackapi.NewClient()

	// setup the identity linker
	link := &linker.Linker{
		Store:      credentials,
		PD:         pdClient,
		Sessions:   linker.NewSessionStore(cfg.SessionSecret),
		Slack:      linker.NewSlackOAuthConfig(cfg.SlackClientID, cfg.SlackClientSecret, cfg.ServerName),
		PDClientID: cfg.PDClientID,
		SlackAppID: cfg.SlackAppID,
		Host:       cfg.ServerName,
	}

	// setup commands
	deps := commands.Deps{
		Slack: slackClient,
		PD:    pdClient,
		Host:  cfg.ServerName,
	}

	registry := dispatcher.NewRegistry()
	registry.Register(commands.NewDomain(deps))
	registry.Register(commands.NewEscalationPolicies(deps))
	registry.Register(commands.NewIncidents(deps))
	registry.Register(commands.NewServices(deps))
	registry.Register(commands.NewTrigger(deps))
	registry.Register(commands.NewWhoami(deps))

	// setup worker pool
	pool := dispatcher.NewPool(cfg.WorkerCount)

	disp := dispatcher.New(credentials, registry, pool, slackClient, cfg.ServerName)

	// setup router
	router := mux.NewRouter()
	router.HandleFunc("/slack_event", disp.SlackEventHandler).Methods(http.MethodPost)
	router.HandleFunc("/slack_action", disp.SlackActionHandler).Methods(http.MethodPost)
	router.HandleFunc("/slack_load_options", disp.SlackOptionsHandler).Methods(http.MethodPost)
	router.HandleFunc("/slack_command", disp.SlackCommandHandler).Methods(http.MethodPost)

	router.HandleFunc("/slack_install", link.InstallHandler).Methods(http.MethodGet)
	router.HandleFunc("/code", link.CodeHandler).Methods(http.MethodGet)
	router.HandleFunc("/pdtoken", link.TokenHandler).Methods(http.MethodGet)
	router.HandleFunc("/me", link.RelinkHandler).Methods(http.MethodGet)
	router.HandleFunc("/", link.IndexHandler).Methods(http.MethodGet)

	// start the http server
	srv := &http.Server{
		Handler: router,
		Addr:    fmt.Sprintf(":%s", cfg.Port),
	}

	go func() {
		log.Infof("listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: failed to listen and serve: %v", err)
		}
	}()

	// Create channel for shutdown signals.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	signal.Notify(stop, syscall.SIGTERM)

	<-stop
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("error shutting down server %s", err)
	} else {
		log.Println("Server gracefully stopped")
	}

	pool.Stop()
}

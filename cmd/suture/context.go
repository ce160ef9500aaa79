package main

import (
	"fmt"
	"strings"
	"sync"

	"suture/internal/apiclient"
	"suture/internal/config"
	"suture/internal/queue"
)

type commandContext struct {
	serverFlag *string
	tokenFlag  *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(serverFlag, tokenFlag, configFlag *string) *commandContext {
	return &commandContext{
		serverFlag: serverFlag,
		tokenFlag:  tokenFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// client resolves the daemon address and token. Flags win over the
// configuration file so the CLI can target a remote daemon.
func (c *commandContext) client() (*apiclient.Client, error) {
	server := ""
	if c.serverFlag != nil {
		server = strings.TrimSpace(*c.serverFlag)
	}
	token := ""
	if c.tokenFlag != nil {
		token = strings.TrimSpace(*c.tokenFlag)
	}

	if server == "" || token == "" {
		cfg, err := c.ensureConfig()
		if err != nil {
			return nil, err
		}
		if server == "" {
			server = fmt.Sprintf("http://%s", cfg.Server.Bind)
		}
		if token == "" {
			token = cfg.Server.APIToken
		}
	}

	return apiclient.New(server, token), nil
}

// withStore opens the submission database directly for maintenance commands
// that do not need a running daemon.
func (c *commandContext) withStore(fn func(*queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

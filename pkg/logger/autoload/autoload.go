// Package autoload initializes the global logger from the environment on
// blank import.
package autoload

import (
	configx "github.com/relaycrew/switchboard/pkg/config"
	logx "github.com/relaycrew/switchboard/pkg/logger"
)

func init() {
	cfg, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*cfg)
}

package config_test

import (
	"fmt"

	"github.com/wonny/signaldesk/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	// 프로세스별 필수값은 시작 시점에 확인
	if err := cfg.RequireOrchestrator(); err != nil {
		fmt.Printf("orchestrator not configured: %v\n", err)
		return
	}

	fmt.Printf("Sources: %v\n", cfg.InfoSources)
	fmt.Printf("Rate limit: %d calls / %s\n", cfg.LLM.MaxCalls, cfg.LLM.Window)
}

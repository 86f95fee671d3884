package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fyerfyer/lgpd-explica/api/middleware"
	qaconfig "github.com/fyerfyer/lgpd-explica/config"
	"github.com/fyerfyer/lgpd-explica/internal/app"
	"github.com/fyerfyer/lgpd-explica/internal/tui"
)

func main() {
	var cfgPath, logFile string
	flag.StringVar(&cfgPath, "config", "config.yaml", "Path to config file")
	flag.StringVar(&logFile, "log-file", "lgpd-explica-tui.log", "Log file, the terminal is used by the interface")
	flag.Parse()

	cfg, err := qaconfig.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 终端被界面占用，日志只写文件
	logger := middleware.SetupLogger(middleware.LogOptions{
		Level:      cfg.Log.Level,
		File:       logFile,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		FileOnly:   true,
	})

	application, err := app.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to assemble application: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	fmt.Println("Carregando a base de conhecimento e o modelo...")
	res := application.Initialize(context.Background())
	if !res.Ready() {
		fmt.Fprintf(os.Stderr, "Aviso: inicialização incompleta, veja %s\n", logFile)
	}

	p := tea.NewProgram(tui.New(context.Background(), application.QA), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
		os.Exit(1)
	}
}

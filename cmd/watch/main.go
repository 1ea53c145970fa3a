package main

import (
	"flag"
	"fmt"
	"os"

	"reelforge/config"
	"reelforge/watch"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	url := flag.String("url", config.GetEnvOrDefault("ORCHESTRATOR_URL", "http://localhost:8080"), "Orchestrator API URL")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Println("usage: watch [-url URL] <run-id>")
		os.Exit(2)
	}

	program := tea.NewProgram(watch.NewModel(*url, flag.Arg(0)))
	if _, err := program.Run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}

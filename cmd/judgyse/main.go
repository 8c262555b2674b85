package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/client"

	"github.com/judgyse/judgyse-go/internal/catalogue"
	"github.com/judgyse/judgyse-go/internal/config"
	"github.com/judgyse/judgyse-go/internal/sandbox"
	"github.com/judgyse/judgyse-go/internal/server"
	"github.com/judgyse/judgyse-go/internal/sessionmgr"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: judgyse <command> [options]")
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the judging server")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
		listenAddr := serveCmd.String("listen", "8080", "Port to listen on (e.g., 8080 or :8080)")
		serveCmd.Parse(os.Args[2:])

		addr := *listenAddr
		if !strings.Contains(addr, ":") {
			addr = ":" + addr
		}
		runServer(addr)

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func runServer(addr string) {
	config.Init()
	config.ServerPort = addr

	judgeDir := config.JudgyseDir
	if config.Wipe {
		_ = os.RemoveAll(filepath.Join(judgeDir, "execution"))
		_ = os.RemoveAll(filepath.Join(judgeDir, "testcases"))
	}
	if err := os.MkdirAll(filepath.Join(judgeDir, "execution"), 0o755); err != nil {
		log.Fatalf("judgyse: create execution dir: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(judgeDir, "testcases"), 0o755); err != nil {
		log.Fatalf("judgyse: create testcases dir: %v", err)
	}

	cat := catalogue.New()
	langPath := filepath.Join(judgeDir, "languages.json")
	compPath := filepath.Join(judgeDir, "compilers.json")
	if err := cat.Reload(langPath, compPath); err != nil {
		log.Printf("judgyse: initial catalogue load: %v (starting with an empty catalogue)", err)
	}

	box, err := newSandbox()
	if err != nil {
		log.Fatalf("judgyse: sandbox init: %v", err)
	}

	mgr := sessionmgr.New(cat, box, judgeDir)
	handler := server.New(mgr)

	log.Printf("judgyse: listening on %s (run_in_docker=%v)", config.ServerPort, config.RunInDocker)
	if err := http.ListenAndServe(config.ServerPort, handler); err != nil {
		log.Fatal(err)
	}
}

func newSandbox() (sandbox.Sandbox, error) {
	if !config.RunInDocker {
		return sandbox.Local{}, nil
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return sandbox.NewContainer(cli), nil
}

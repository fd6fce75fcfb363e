package main

import (
	"fmt"
	"os"
	"strings"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		showUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "--help", "-h", "help":
		showUsage()
		return
	case "version", "--version":
		fmt.Println("docroute", version)
		return
	case "ask":
		if err := runAsk(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "ask: %v\n", err)
			os.Exit(1)
		}
	case "repl":
		if err := runREPL(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "repl: %v\n", err)
			os.Exit(1)
		}
	case "agents":
		if err := runAgents(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "agents: %v\n", err)
			os.Exit(1)
		}
	case "seed":
		if err := runSeed(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "seed: %v\n", err)
			os.Exit(1)
		}
	case "mcp":
		if err := runMCP(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "mcp: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'docroute --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`docroute - route questions about a document corpus to specialised agents

USAGE:
    docroute <command> [flags]

COMMANDS:
    ask <question>    Answer one question and exit
    repl              Interactive session that carries history and memory
    agents            List the agents the registry considers active
    seed              Write the configured agents into the sqlite agent store
    mcp               Serve answer_question and list_agents over MCP stdio
    version           Print the version
    help              Show this message

FLAGS:
    --config <path>   Config file (default: $DOCROUTE_CONFIG or config.yaml)
    --docs <path>     YAML file with candidate documents (ask, repl)
    --json            Print the full response as JSON (ask)
    --trace           Show the execution trace under the answer (ask, repl)

CONFIGURATION:
    Environment variables prefixed with DOCROUTE_ override config values.
    A .env file in the working directory is loaded first when present.

EXAMPLES:
    docroute ask --docs docs.yaml "who sent the latest invoice?"
    docroute repl --docs docs.yaml --trace
    docroute seed --config config.yaml`)
}

// cliFlags holds the flags shared by every subcommand.
type cliFlags struct {
	Config string
	Docs   string
	JSON   bool
	Trace  bool
	Args   []string
}

// parseFlags splits args into known flags and positional arguments.
func parseFlags(args []string) cliFlags {
	var flags cliFlags
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--config" && i+1 < len(args):
			flags.Config = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--config="):
			flags.Config = strings.TrimPrefix(args[i], "--config=")
		case args[i] == "--docs" && i+1 < len(args):
			flags.Docs = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--docs="):
			flags.Docs = strings.TrimPrefix(args[i], "--docs=")
		case args[i] == "--json":
			flags.JSON = true
		case args[i] == "--trace":
			flags.Trace = true
		default:
			flags.Args = append(flags.Args, args[i])
		}
	}
	return flags
}

func configPath(flags cliFlags) string {
	if flags.Config != "" {
		return flags.Config
	}
	if p := os.Getenv("DOCROUTE_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

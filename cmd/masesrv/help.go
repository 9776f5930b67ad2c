// ABOUTME: Help display for the masesrv CLI with grouped flags, examples, and environment status.
// ABOUTME: Provides printHelp for polished usage output and envStatus for backend detection.
package main

import (
	"fmt"
	"io"
	"os"
)

const maseASCII = `
        .  .  .
     .  :  :  :  .
   .   ' -.:.- '   .
  :      (   )      :
   .  ' -' o '- '  .
     .  :  :  :  .
        '  '  '
`

// printHelp writes a formatted help message to w: usage patterns, grouped
// flags, examples, environment status, and a docs pointer.
func printHelp(w io.Writer, ver string) {
	fmt.Fprint(w, maseASCII)
	fmt.Fprintf(w, "masesrv %s — Socratic circle dialogue engine\n", ver)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  masesrv run <ensemble.yaml> \"<provocation>\"   Run one session to completion")
	fmt.Fprintln(w, "  masesrv -server [-bind host:port]              Start the REST control surface")
	fmt.Fprintln(w, "  masesrv setup                                  Interactive setup wizard")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Session Flags:")
	fmt.Fprintln(w, "  -resume <session_id>   Resume a session from its last checkpoint")
	fmt.Fprintln(w, "  -max-turns <n>         Override the ensemble config's max_turns")
	fmt.Fprintln(w, "  -seed <n>              Override the scheduler seed")
	fmt.Fprintln(w, "  -data-dir <dir>        Persistent state directory (default: $XDG_DATA_HOME/mase-engine)")
	fmt.Fprintln(w, "  -backend-url <url>     Override the LLM backend base URL")
	fmt.Fprintln(w, "  -verbose               Verbose logging")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Server Flags:")
	fmt.Fprintln(w, "  -server                Start HTTP server mode")
	fmt.Fprintln(w, "  -bind <host:port>      Bind address (default: 127.0.0.1:8787)")
	fmt.Fprintln(w, "  -allow-remote          Permit a non-loopback -bind (requires -auth-token)")
	fmt.Fprintln(w, "  -auth-token <token>    Bearer token required on every request")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Other:")
	fmt.Fprintln(w, "  -version               Print version and exit")
	fmt.Fprintln(w, "  -help                  Show this help")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  masesrv run circles/three-voice.yaml \"What do we owe the future?\"")
	fmt.Fprintln(w, "  masesrv -resume 01J... run circles/three-voice.yaml \"\"")
	fmt.Fprintln(w, "  masesrv -server -bind 127.0.0.1:8787")
	fmt.Fprintln(w, "  masesrv -server -allow-remote -auth-token secret -bind 0.0.0.0:8787")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment:")
	fmt.Fprintf(w, "  MASE_DEFAULT_BACKEND_URL   %s\n", envStatus("MASE_DEFAULT_BACKEND_URL"))
	fmt.Fprintf(w, "  MASE_AUTH_TOKEN            %s\n", envStatus("MASE_AUTH_TOKEN"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  A reachable Ollama-compatible backend is required (default http://localhost:11434).")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Docs: ensemble config and wire protocol documented in docs/spec.md")
}

// envStatus returns "[set]" if the named environment variable is non-empty,
// or "[not set]" otherwise.
func envStatus(key string) string {
	if os.Getenv(key) != "" {
		return "[set]"
	}
	return "[not set]"
}

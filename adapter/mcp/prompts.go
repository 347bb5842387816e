package mcp

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
)

const unknownPosition = "[Please provide the position as FEN]"

// RegisterPrompts registers MCP prompts for common chessgate workflows.
func RegisterPrompts(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}

	srv.Prompt("analyze_position").
		Description("Compare every engine on one position and explain where they disagree.").
		Argument("fen", "Position in Forsyth-Edwards Notation", true).
		Argument("depth", "Search depth for traditional engines", false).
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			fen := args["fen"]
			if fen == "" {
				fen = unknownPosition
			}
			depth := args["depth"]
			if depth == "" {
				depth = "the engine default"
			}

			return &mcp.PromptResult{
				Description: "Position Analysis",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: fmt.Sprintf(`Analyze this chess position with every configured engine.

**Position:** %s
**Depth:** %s

Please:
1. Read chessgate://engines to see which engines exist and whether they are available
2. Call move.compare with the position
3. Group the engines by the move they chose
4. For every engine that answered ERROR or UNAVAILABLE, say why if the message tells
5. If the engines disagree, call move.best on one generative engine with explain=true
   and summarize its reasoning next to the search engines' choice

Finish with the move most engines agree on.`, fen, depth),
						},
					},
				},
			}, nil
		})

	srv.Prompt("engine_triage").
		Description("Find out why engines are failing and what to fix in their configuration.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return &mcp.PromptResult{
				Description: "Engine Triage",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: `Check the health of my chess engines. Please:

1. Call engines.check to probe every engine
2. Read chessgate://history/stats for recent successes and failures per engine
3. For each engine that is down or failing, look at its protocol in engines.matrix:
   - uci: the command may be missing from PATH or the handshake may time out
   - rest and local_llm: the service URL may be wrong or the service stopped
   - api_llm: the API key may be missing or the provider rejected the request
4. Suggest the configuration change, then call engines.reload once I have applied it`,
						},
					},
				},
			}, nil
		})

	return nil
}

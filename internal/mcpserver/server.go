// Package mcpserver exposes a quiz session as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwulff/mathquiz/internal/command"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// tool pairs a tool definition with the command it issues.
type tool struct {
	def   mcp.Tool
	build func(mcp.CallToolRequest) command.Command
}

func simple(cmd string) func(mcp.CallToolRequest) command.Command {
	return func(mcp.CallToolRequest) command.Command {
		return command.Command{Cmd: cmd}
	}
}

func tools() []tool {
	return []tool{
		{
			def: mcp.NewTool("list_categories",
				mcp.WithDescription("List the question categories in the bank and the current selection."),
			),
			build: simple(command.CmdCategories),
		},
		{
			def: mcp.NewTool("toggle_category",
				mcp.WithDescription("Include or exclude a category before starting a quiz."),
				mcp.WithString("category", mcp.Required(), mcp.Description("Category name")),
				mcp.WithBoolean("included", mcp.Description("true to include, false to exclude (default true)")),
			),
			build: func(req mcp.CallToolRequest) command.Command {
				return command.Command{
					Cmd:      command.CmdToggle,
					Category: req.GetString("category", ""),
					Included: command.BoolPtr(req.GetBool("included", true)),
				}
			},
		},
		{
			def: mcp.NewTool("start_quiz",
				mcp.WithDescription("Start a quiz over the selected categories in random order."),
			),
			build: simple(command.CmdStart),
		},
		{
			def: mcp.NewTool("current_question",
				mcp.WithDescription("Show the current question and its answer choices."),
			),
			build: simple(command.CmdCurrent),
		},
		{
			def: mcp.NewTool("answer_question",
				mcp.WithDescription("Answer the current question. Each question accepts one answer."),
				mcp.WithString("answer", mcp.Description("Answer text, exactly as shown")),
				mcp.WithNumber("choice", mcp.Description("1-based choice number, used instead of answer")),
			),
			build: func(req mcp.CallToolRequest) command.Command {
				cmd := command.Command{Cmd: command.CmdAnswer, Answer: req.GetString("answer", "")}
				if n := req.GetInt("choice", 0); n > 0 {
					cmd.Choice = command.IntPtr(n)
				}
				return cmd
			},
		},
		{
			def: mcp.NewTool("next_question",
				mcp.WithDescription("Move to the next question, or to the results after the last one."),
			),
			build: simple(command.CmdNext),
		},
		{
			def: mcp.NewTool("restart_quiz",
				mcp.WithDescription("Abandon the quiz and return to category selection. The selection is kept."),
			),
			build: simple(command.CmdRestart),
		},
		{
			def: mcp.NewTool("quiz_status",
				mcp.WithDescription("Show the session state, score and results."),
			),
			build: simple(command.CmdStatus),
		},
	}
}

// New returns an MCP server whose tools drive d.
func New(d *command.Dispatcher, version string) *server.MCPServer {
	s := server.NewMCPServer("mathquiz", version, server.WithToolCapabilities(false))
	for _, t := range tools() {
		s.AddTool(t.def, handle(d, t.build))
	}
	return s
}

// handle adapts a command builder into a tool handler. The response is
// returned as JSON text and flagged as an error when the command failed.
func handle(d *command.Dispatcher, build func(mcp.CallToolRequest) command.Command) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp := d.Apply(ctx, build(req))
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal response: %w", err)
		}
		result := mcp.NewToolResultText(string(data))
		result.IsError = !resp.OK
		return result, nil
	}
}

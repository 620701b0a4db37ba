package main

import (
	"bufio"
	"context"
	"filecoder-backend/service/chat"
	"filecoder-backend/utils"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
)

const maxInputLine = 1 << 20

var showSteps bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireAPIKey(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		orchestrator, shutdown, err := buildOrchestrator(cfg)
		if err != nil {
			return err
		}
		defer shutdown()

		return runREPL(ctx, orchestrator, chat.ModelConfigFrom(cfg.Model), cmd.InOrStdin(), cmd.OutOrStdout(), showSteps)
	},
}

func init() {
	chatCmd.Flags().BoolVar(&showSteps, "steps", false, "print the agent's intermediate reasoning")
}

// terminalRenderer 将对话事件输出到终端
type terminalRenderer struct {
	out       io.Writer
	showSteps bool
}

func (r *terminalRenderer) Render(event, data string) error {
	var err error
	switch event {
	case utils.EventWelcome, utils.EventProcessing, utils.EventFinalAnswer, utils.EventError:
		_, err = fmt.Fprintln(r.out, data)
	case utils.EventToolCallResult:
		_, err = fmt.Fprintf(r.out, "  %s\n", strings.ReplaceAll(data, "\n", "\n  "))
	case utils.EventImmediateSteps:
		if r.showSteps {
			_, err = fmt.Fprint(r.out, data)
		}
	case utils.EventDone:
		_, err = fmt.Fprintln(r.out)
	}
	return err
}

// runREPL 每行输入作为一条用户消息，输入 exit 或 EOF 结束
func runREPL(ctx context.Context, o *chat.Orchestrator, model chat.ModelConfig, in io.Reader, out io.Writer, showSteps bool) error {
	session, welcome := o.StartSession(model)
	renderer := &terminalRenderer{out: out, showSteps: showSteps}

	if err := renderer.Render(utils.EventWelcome, welcome); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxInputLine)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		// 失败的轮次已经渲染给用户，继续等待下一条输入
		_ = o.HandleMessage(ctx, session, line, renderer)

		if ctx.Err() != nil {
			return nil
		}
	}
}

package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  string
	date    string
)

// SetVersion 设置 --version 显示的版本信息，main 在启动时传入 ldflags 注入的值。
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute 运行 cantus 命令行。
func Execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "cantus",
		Short:         "cantus 将乐谱排版为 PDF 或 SVG",
		Long:          `cantus 读取 MusicXML、结构化 JSON 或文本乐谱记法，按行宽把小节分行排版，并输出 PDF、SVG 或排版 JSON。`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := log.InfoLevel
			if verbose {
				level = log.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(cmd.ErrOrStderr(), level)))
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("cantus %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "输出调试日志")

	root.AddCommand(newRenderCmd())
	root.AddCommand(newLayoutCmd())
	return root
}

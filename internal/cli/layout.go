package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ByLCY/cantus/errors"
	"github.com/ByLCY/cantus/layout"
	canvasrenderer "github.com/ByLCY/cantus/renderer/canvas"
)

func newLayoutCmd() *cobra.Command {
	var (
		width length
		scale float64
		out   string
	)
	cmd := &cobra.Command{
		Use:   "layout <file>",
		Short: "以 JSON 输出行块划分与每个小节的 x/宽度（默认写到标准输出）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if scale <= 0 {
				return errors.New(errors.ErrCodeConfig, "scale 必须为正数，得到 %g", scale)
			}
			doc, err := openDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			r := canvasrenderer.NewRenderer(canvasrenderer.Options{
				Width:  width.ToUnits(scale),
				Scale:  scale,
				Logger: loggerFromContext(cmd.Context()),
			})
			res, err := r.Layout(doc)
			if err != nil {
				return err
			}
			if out != "" {
				if err := layout.WriteDebugJSON(res, out); err != nil {
					return errors.Wrap(errors.ErrCodeRender, err, "写入 %s 失败", out)
				}
				loggerFromContext(cmd.Context()).Info("已写入排版结果", "output", out)
				return nil
			}
			data, err := layout.MarshalDebugJSON(res)
			if err != nil {
				return errors.Wrap(errors.ErrCodeRender, err, "编码排版结果失败")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
	cmd.Flags().Var(&width, "width", `行宽，排版单位数字或长度（例如 "180mm"）`)
	cmd.Flags().Float64Var(&scale, "scale", layout.DefaultUnitScale, "每个排版单位的毫米数")
	cmd.Flags().StringVarP(&out, "out", "o", "", "写入的 JSON 文件路径")
	return cmd
}

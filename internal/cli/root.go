// Package cli 命令行入口：本地清洗/翻译，以及对远端文档库的上传、列表、删除和 HTTP 服务。
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/ocr-bilingual/internal/server"
	"github.com/nerdneilsfield/ocr-bilingual/internal/service"
	"github.com/nerdneilsfield/ocr-bilingual/internal/translator"
	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers/stats"
)

// rootOptions 全局标志
type rootOptions struct {
	cfgFile string
	debug   bool
}

// NewRootCommand 创建根命令
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "ocrtrans",
		Short: "OCR 识别与中英双语翻译服务",
		Long: `ocrtrans 把上传的 PDF/图片识别为 Markdown，存入远端文档库，
并按段落生成中英对照的双语 Markdown。

存储后端:
  - github: GitHub 仓库（contents API）
  - git:    本地 git 仓库
  - minio:  S3 兼容对象存储`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "配置文件路径（默认 ~/.ocrtrans.yaml 或 ./.ocrtrans.yaml）")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "启用调试日志")

	rootCmd.AddCommand(
		newServeCommand(opts),
		newTranslateCommand(opts),
		newCleanCommand(opts),
		newListCommand(opts),
		newUploadCommand(opts),
		newDeleteCommand(opts),
		newPreloadCommand(opts),
	)
	return rootCmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := a.runtime(ctx, nil)
			if err != nil {
				return err
			}
			defer func() {
				rt.Close()
				rt.recorder.LogSummary()
			}()
			return server.New(rt.svc, rt.store.Name(), a.log.Named("http")).Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "监听地址（默认取 server.addr）")
	return cmd
}

func newTranslateCommand(opts *rootOptions) *cobra.Command {
	var (
		output string
		remote bool
	)
	cmd := &cobra.Command{
		Use:   "translate <file.md>",
		Short: "把 Markdown 翻译为双语 Markdown",
		Long: `默认翻译本地文件，结果写入 <name>_dual.md 或 -o 指定的路径。
使用 --remote 时参数是文档库中的路径，结果存回文档库。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()

			bar := &progressBar{}
			defer bar.Stop()

			if remote {
				rt, err := a.runtime(cmd.Context(), bar.Update)
				if err != nil {
					return err
				}
				defer rt.Close()
				res, err := rt.svc.Translate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				bar.Stop()
				printTranslateResult(cmd, res.DualPath, res.Status, res.Report, rt.recorder)
				return nil
			}

			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			recorder := stats.NewRecorder(a.log.Named("stats"))
			p, err := a.pipeline(cmd.Context(), recorder, bar.Update)
			if err != nil {
				return err
			}
			out, report := p.Run(cmd.Context(), string(src))
			bar.Stop()

			if output == "" {
				output = service.DualPath(args[0])
			}
			if err := os.WriteFile(output, []byte(out), 0o644); err != nil {
				return err
			}
			printTranslateResult(cmd, output, service.StatusTranslated, &report, recorder)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "输出文件路径")
	cmd.Flags().BoolVar(&remote, "remote", false, "翻译文档库中的文件")
	return cmd
}

func printTranslateResult(cmd *cobra.Command, path, status string, report *translator.Report, recorder *stats.Recorder) {
	w := cmd.OutOrStdout()
	ok := color.New(color.FgGreen, color.Bold)
	_, _ = ok.Fprintf(w, "✔ %s: %s\n", status, path)
	if report == nil {
		return
	}
	fmt.Fprintf(w, "batches: %d, degraded: %d, elapsed: %s\n", report.Batches, report.Degraded, report.Duration.Round(time.Millisecond))
	if report.Degraded > 0 {
		_, _ = color.New(color.FgYellow).Fprintf(w, "⚠ %d 个批次翻译失败，已保留原文\n", report.Degraded)
	}
	for _, m := range report.Missing {
		_, _ = color.New(color.FgYellow).Fprintf(w, "⚠ %s: 原文 %d, 译文 %d\n", m.Category, m.Source, m.Output)
	}
	renderEngineStats(w, recorder.Snapshot())
}

func newCleanCommand(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "clean <file>",
		Short: "清洗 OCR 产出的 Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			cleaned := a.cleaner().Clean(string(src))
			if output == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), cleaned)
				return err
			}
			return os.WriteFile(output, []byte(cleaned), 0o644)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "输出文件路径（默认输出到标准输出）")
	return cmd
}

// withRuntime 加载配置、组装服务，执行 fn 后等待后台任务结束
func withRuntime(cmd *cobra.Command, opts *rootOptions, fn func(a *app, rt *runtime) error) error {
	a, err := loadApp(opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.log.Sync() }()
	rt, err := a.runtime(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(a, rt)
}

func newListCommand(opts *rootOptions) *cobra.Command {
	var user, filter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "列出用户的文档",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, opts, func(a *app, rt *runtime) error {
				records, err := rt.svc.List(cmd.Context(), user, filter)
				if err != nil {
					return err
				}
				renderRecords(cmd.OutOrStdout(), records)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "用户 id")
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "按名称模糊过滤")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newUploadCommand(opts *rootOptions) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "识别 PDF/图片并存入文档库",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, opts, func(a *app, rt *runtime) error {
				spinner, _ := pterm.DefaultSpinner.Start("识别 " + filepath.Base(args[0]))
				res, err := rt.svc.Upload(cmd.Context(), user, filepath.Base(args[0]), data)
				if spinner != nil {
					if err != nil {
						spinner.Fail(err.Error())
					} else {
						spinner.Success("识别完成")
					}
				}
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "source:   %s\nmarkdown: %s\n", res.SourcePath, res.MarkdownPath)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "用户 id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newDeleteCommand(opts *rootOptions) *cobra.Command {
	var user, source, markdown string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "删除源文件、Markdown 及其双语版本",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, opts, func(a *app, rt *runtime) error {
				details, err := rt.svc.Delete(cmd.Context(), user, source, markdown)
				if err != nil {
					return err
				}
				renderDeleteDetails(cmd.OutOrStdout(), details)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "用户 id")
	cmd.Flags().StringVar(&source, "source", "", "源文件路径")
	cmd.Flags().StringVar(&markdown, "markdown", "", "Markdown 路径")
	for _, f := range []string{"user", "source", "markdown"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newPreloadCommand(opts *rootOptions) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "preload",
		Short: "重建用户的文档列表缓存",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, opts, func(a *app, rt *runtime) error {
				if err := rt.svc.CheckUser("cli.preload", user); err != nil {
					return err
				}
				// 进程随即退出，直接同步刷新
				records, err := rt.refresher.Refresh(cmd.Context(), user)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records\n", user, len(records))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "用户 id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// progressBar 首次回调时才知道批次总数，延迟创建进度条
type progressBar struct {
	mu  sync.Mutex
	bar *pterm.ProgressbarPrinter
}

// Update 由调度器并发调用
func (p *progressBar) Update(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		bar, err := pterm.DefaultProgressbar.WithTotal(total).WithTitle("翻译进度").Start()
		if err != nil {
			return
		}
		p.bar = bar
	}
	p.bar.Increment()
}

// Stop 结束进度条，可重复调用
func (p *progressBar) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_, _ = p.bar.Stop()
		p.bar = nil
	}
}

// Execute 运行根命令
func Execute(ctx context.Context, version, commit, buildDate string) int {
	cmd := NewRootCommand(version, commit, buildDate)
	if err := cmd.ExecuteContext(ctx); err != nil {
		msg := strings.TrimSpace(err.Error())
		_, _ = color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "✘ "+msg)
		return 1
	}
	return 0
}

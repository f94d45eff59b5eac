package main

import (
	"errors"
	"fmt"
	"os"

	"gemini/internal/config"
	"gemini/internal/discord"
	"gemini/internal/engine"
	"gemini/internal/logger"
	"gemini/internal/sink"
	"gemini/internal/ui"

	_ "gemini/internal/mpv"
	_ "gemini/internal/player"
	_ "gemini/internal/video"

	"fyne.io/fyne/v2/app"
	cc "github.com/ivanpirog/coloredcobra"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const appID = "io.github.gemini.player"

func main() {
	root := newRootCmd(viper.New())
	root.SetOut(os.Stdout)
	cc.Init(&cc.Config{
		RootCmd:       root,
		Headings:      cc.HiCyan + cc.Bold + cc.Underline,
		Commands:      cc.HiYellow + cc.Bold,
		Example:       cc.Italic,
		ExecName:      cc.Bold,
		Flags:         cc.Bold,
		FlagsDataType: cc.Italic + cc.HiBlue,
	})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 when nothing could ever play in the window and 1 otherwise.
func exitCode(err error) int {
	if errors.Is(err, sink.ErrSinkUnavailable) {
		return 2
	}
	return 1
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gemini [file or URL...]",
		Short: "A single-window audio and video player",
		Long: "Gemini plays one local file or network stream in a window.\n" +
			"Sources can be given on the command line, dropped onto the window or picked with Open.\n" +
			"When several are given only the first one is played.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if lo.Must(cmd.Flags().GetBool("software")) {
				v.Set("video.accelerated", "off")
			}
			return run(v, lo.Must(cmd.Flags().GetString("config")), args)
		},
	}

	flags := cmd.Flags()
	flags.StringP("config", "c", "", "Read settings from this file instead of "+config.Dir()+"/config.toml")
	flags.StringP("backend", "b", "", "Playback backend: auto, vlc, mpv or beep")
	lo.Must0(v.BindPFlag("engine.backend", flags.Lookup("backend")))
	lo.Must0(cmd.RegisterFlagCompletionFunc("backend", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		names := lo.Map(engine.Backends(), func(b engine.Backend, _ int) string { return b.Name() })
		return append([]string{"auto"}, names...), cobra.ShellCompDirectiveNoFileComp
	}))
	flags.Bool("software", false, "Never render video through a hardware context")
	flags.BoolP("fullscreen", "f", false, "Start in fullscreen")
	lo.Must0(v.BindPFlag("ui.start_fullscreen", flags.Lookup("fullscreen")))
	flags.StringP("log-level", "l", "", "Log level: error, warn, info, debug or trace")
	lo.Must0(v.BindPFlag("log.level", flags.Lookup("log-level")))

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func run(v *viper.Viper, configPath string, args []string) error {
	fs := afero.NewOsFs()
	cfg, err := config.Load(v, fs, configPath)
	if err != nil {
		return err
	}

	log := logrus.StandardLogger()
	closeLog, err := logger.Setup(log, cfg.Log, fs, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	backend, err := engine.Lookup(cfg.Engine.Backend)
	if err != nil {
		return err
	}
	mode, err := sink.ParseMode(cfg.Video.Accelerated)
	if err != nil {
		return err
	}

	a := app.NewWithID(appID)
	a.Settings().SetTheme(ui.Theme(cfg.UI.Theme))

	w := ui.New(a, ui.Options{
		Width:         cfg.UI.Width,
		Height:        cfg.UI.Height,
		Fullscreen:    cfg.UI.StartFullscreen,
		Backend:       backend,
		Mode:          mode,
		Converter:     sink.Converter{Width: cfg.Video.Width, Height: cfg.Video.Height},
		FrameInterval: cfg.Video.FrameInterval(),
		PollInterval:  cfg.Engine.PollInterval,
		Open:          lo.Map(args, func(arg string, _ int) string { return ui.ArgURI(arg) }),
		Log:           logger.Component(log, "ui"),
	})

	var startErr error
	a.Lifecycle().SetOnStarted(func() {
		ctl, err := w.Start()
		if err != nil {
			startErr = err
			log.WithError(err).Error("window cannot play anything")
			a.Quit()
			return
		}
		if !cfg.Discord.Enabled {
			return
		}
		presence := discord.New(discord.Config{
			ClientID: cfg.Discord.ClientID,
			Log:      logger.Component(log, "discord"),
		})
		stop := presence.Follow(ctl.URI(), ctl.Playing())
		w.OnClose(func() {
			stop()
			presence.Close()
		})
	})

	log.WithFields(logrus.Fields{
		"backend": backend.Name(),
		"video":   mode,
	}).Debug("starting")
	w.ShowAndRun()
	return startErr
}

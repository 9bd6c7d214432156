package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sanonone/kektorflow/pkg/tasks"
)

var (
	speakVoice  string
	speakSpeed  float64
	speakOutDir string
)

var speakCmd = &cobra.Command{
	Use:   "speak <text>",
	Short: "Convert text to speech and print the audio file path",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSpeak,
}

func init() {
	f := speakCmd.Flags()
	f.StringVar(&speakVoice, "voice", tasks.DefaultVoice, "voice name")
	f.Float64Var(&speakSpeed, "speed", tasks.DefaultSpeed, "speech speed (0.25 to 4)")
	f.StringVarP(&speakOutDir, "out-dir", "o", "", "directory for the audio file (default from config)")
}

func runSpeak(cmd *cobra.Command, args []string) error {
	if speakOutDir != "" {
		cfg.Speech.OutputDir = speakOutDir
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.speech.Run(cmd.Context(), a.apis, tasks.SpeechParams{
		Text:  strings.Join(args, " "),
		Voice: speakVoice,
		Speed: speakSpeed,
	})
	if err != nil {
		return err
	}
	last, _ := res.Last()
	for _, f := range last.References.Files {
		fmt.Fprintln(cmd.OutOrStdout(), f.SourcePath())
	}
	return nil
}

package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fauxqs",
	Short: "fauxqs is an in-process, in-memory emulator for SQS, SNS and S3.",
}

func Execute() error {
	return rootCmd.Execute()
}

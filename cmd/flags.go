package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// mustFlag reads a flag through one of the pflag getters. Flags are declared
// in init(), so a lookup error is a programming bug and panics.
func mustFlag[T any](name string, get func(string) (T, error)) T {
	val, err := get(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	return mustFlag(name, cmd.Flags().GetBool)
}

func mustGetInt(cmd *cobra.Command, name string) int {
	return mustFlag(name, cmd.Flags().GetInt)
}

func mustGetString(cmd *cobra.Command, name string) string {
	return mustFlag(name, cmd.Flags().GetString)
}

// flagOverride returns the flag value when the user set it explicitly.
func flagOverride[T any](cmd *cobra.Command, name string, get func(string) (T, error)) (T, bool) {
	if !cmd.Flags().Changed(name) {
		var zero T
		return zero, false
	}
	return mustFlag(name, get), true
}

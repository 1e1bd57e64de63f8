/*
Copyright © 2026 the dosio authors.
This file is part of dosio.

dosio is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

dosio is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with dosio.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package dosioutil contains the command-line interface and configuration
// handling for dosio.
package dosioutil

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/dosio"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

// Log is the logger used by the commands and the codecs they create.
var Log = logrus.StandardLogger()

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to dosio.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "loglevel",
			usage: `
              loglevel sets the level of messages to log: one of
              debug, info, warning, or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "byteorder",
			usage: `
              byteorder specifies the byte order of the binary files read and
              written: native for the order of this machine, or little or big
              for files exchanged with machines of a different architecture.`,
			defaultVal: "native",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "output",
			usage: `
              output specifies the path of the file to write. Paths in the
              format provider://bucket/key are written to blob storage.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{combineCmd.Flags(), exportCmd.Flags()},
		},
		{
			name: "manifest",
			usage: `
              manifest specifies a TOML file listing the Output file and the
              Chunks to combine. Chunks given on the command line are added to
              those in the manifest, and the output flag overrides the
              manifest Output.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{combineCmd.Flags()},
		},
		{
			name: "chunks",
			usage: `
              chunks lists the partial-dose files to combine. A blob directory
              ending in '/' stands for every .pardose file inside it.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{combineCmd.Flags()},
		},
		{
			name: "allowshort",
			usage: `
              allowshort adds chunks that could only be partly read to the
              total, with a warning. By default such chunks stop the
              combination.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{combineCmd.Flags()},
		},
		{
			name: "densitybase",
			usage: `
              densitybase is the index at which phantom densities are stored.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{infoPhantomCmd.Flags()},
		},
		{
			name: "timeout",
			usage: `
              timeout limits the time spent on blob storage requests.`,
			defaultVal: "10m",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("DOSIO")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
			case int:
				set.Int(option.name, option.defaultVal.(int), option.usage)
			case bool:
				set.Bool(option.name, option.defaultVal.(bool), option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(combineCmd)
	Root.AddCommand(infoCmd)
	infoCmd.AddCommand(infoPartialDoseCmd)
	infoCmd.AddCommand(infoPhantomCmd)
	infoCmd.AddCommand(infoDoseCmd)
	infoCmd.AddCommand(infoIntensityCmd)
	Root.AddCommand(exportCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and applies the logging level.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("dosio: problem reading configuration file: %v", err)
		}
	}
	level, err := logrus.ParseLevel(Cfg.GetString("loglevel"))
	if err != nil {
		return fmt.Errorf("dosio: loglevel: %v", err)
	}
	Log.SetLevel(level)
	Log.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
	}
	return nil
}

// codec returns a codec configured by the byteorder option.
func codec() (*dosio.Codec, error) {
	c := dosio.NewCodec(Log)
	switch o := strings.ToLower(Cfg.GetString("byteorder")); o {
	case "native", "":
	case "little":
		c.ByteOrder = binary.LittleEndian
	case "big":
		c.ByteOrder = binary.BigEndian
	default:
		return nil, fmt.Errorf("dosio: byteorder must be native, little, or big but is `%s`", o)
	}
	return c, nil
}

// timeoutContext returns a context bounded by the timeout option.
func timeoutContext() (context.Context, context.CancelFunc, error) {
	d, err := cast.ToDurationE(Cfg.Get("timeout"))
	if err != nil {
		return nil, nil, fmt.Errorf("dosio: timeout: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	return ctx, cancel, nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "dosio",
	Short: "Reads, writes, and combines dose calculation files.",
	Long: `dosio reads and writes the binary files exchanged between the parallel
chunks of a Monte Carlo dose calculation: partial-dose records, voxelized
phantoms, dose grids, and 2D intensity maps. Use the subcommands specified
below to combine the partial-dose records of a run, inspect files, and export
dose grids to NetCDF.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'DOSIO_var' where 'var' is the
name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of dosio.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("dosio v%s\n", dosio.Version)
	},
	DisableAutoGenTag: true,
}

var combineCmd = &cobra.Command{
	Use:   "combine [chunks...]",
	Short: "Combine partial-dose chunks",
	Long: `combine sums the partial-dose records written by the parallel chunks of
a run and writes the total as a single partial-dose record. Chunks can be
local files or blob storage URLs in the format provider://bucket/key, where
provider is file, mem, gs, or s3.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel, err := timeoutContext()
		if err != nil {
			return err
		}
		defer cancel()
		c, err := codec()
		if err != nil {
			return err
		}
		chunks, err := cast.ToStringSliceE(Cfg.Get("chunks"))
		if err != nil {
			return fmt.Errorf("dosio: chunks: %v", err)
		}
		output := Cfg.GetString("output")
		if m := Cfg.GetString("manifest"); m != "" {
			man, err := ReadManifest(m)
			if err != nil {
				return err
			}
			chunks = append(man.Chunks, chunks...)
			if output == "" {
				output = man.Output
			}
		}
		chunks = append(chunks, args...)
		return Combine(ctx, c, output, Cfg.GetBool("allowshort"), chunks...)
	},
	DisableAutoGenTag: true,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print a summary of a dosio file",
	Long: `info decodes a file and prints its dimensions and a summary of its
contents. Use one of the subcommands to select the file type.`,
	DisableAutoGenTag: true,
}

var infoPartialDoseCmd = &cobra.Command{
	Use:   "pardose file",
	Short: "Summarize a partial-dose record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return info(cmd, args[0], PartialDoseSummary)
	},
	DisableAutoGenTag: true,
}

var infoPhantomCmd = &cobra.Command{
	Use:   "phantom file",
	Short: "Summarize a binary phantom",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base := Cfg.GetInt("densitybase")
		return info(cmd, args[0], func(ctx context.Context, c *dosio.Codec, path string) (string, error) {
			return PhantomSummary(ctx, c, path, base)
		})
	},
	DisableAutoGenTag: true,
}

var infoDoseCmd = &cobra.Command{
	Use:   "dose file",
	Short: "Summarize a binary dose grid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return info(cmd, args[0], DoseGridSummary)
	},
	DisableAutoGenTag: true,
}

var infoIntensityCmd = &cobra.Command{
	Use:   "i2d file",
	Short: "Summarize a binary 2D intensity map",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return info(cmd, args[0], IntensityMapSummary)
	},
	DisableAutoGenTag: true,
}

func info(cmd *cobra.Command, path string, summary func(context.Context, *dosio.Codec, string) (string, error)) error {
	ctx, cancel, err := timeoutContext()
	if err != nil {
		return err
	}
	defer cancel()
	c, err := codec()
	if err != nil {
		return err
	}
	s, err := summary(ctx, c, path)
	if s != "" {
		cmd.Println(s)
	}
	return err
}

var exportCmd = &cobra.Command{
	Use:   "export file",
	Short: "Convert a binary dose grid to NetCDF",
	Long: `export reads a binary dose grid and writes it as a NetCDF file with
single-precision dose and uncertainty variables laid out as [z][y][x] and
the voxel boundaries in the xbound, ybound, and zbound variables.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel, err := timeoutContext()
		if err != nil {
			return err
		}
		defer cancel()
		c, err := codec()
		if err != nil {
			return err
		}
		return Export(ctx, c, args[0], Cfg.GetString("output"))
	},
	DisableAutoGenTag: true,
}

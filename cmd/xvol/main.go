// Command-line interface to xvol volume files.
// Provides inspection, conversion, anonymization, and NIfTI import.

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"

	"github.com/neurimage/xvol/attr"
	"github.com/neurimage/xvol/volume"
	"github.com/neurimage/xvol/xvol"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	// Path to a TOML configuration file.
	configFile = flag.String("config", "", "")

	// Compress array payloads on write.
	compress = flag.Bool("compress", false, "")

	// Write the legacy two-file layout instead of a single file.
	twoFile = flag.Bool("twofile", false, "")
)

const helpMessage = `
xvol is a command-line interface to volumetric neuroimaging files

Usage: xvol [options] <command>

      -config     =string   Path to TOML configuration file.
      -compress   (flag)    Compress array payloads on write.
      -twofile    (flag)    Write the legacy two-file layout.
      -verbose    (flag)    Run in verbose mode.
  -h, -help       (flag)    Show help message

Commands:

	about
	help
	info      <file.xvol>
	convert   <in.xvol> <out.xvol>
	anonymize <file.xvol>
	import    <in.nii[.gz]> <out.xvol>
`

// tomlConfig mirrors the [log] and [write] sections of the config file.
type tomlConfig struct {
	Log   xvol.LogConfig `toml:"log"`
	Write struct {
		Compress bool `toml:"compress"`
		TwoFile  bool `toml:"twofile"`
	} `toml:"write"`
}

var usage = func() {
	fmt.Print(helpMessage)
}

func main() {
	flag.BoolVar(showHelp, "h", false, "")
	flag.Usage = usage
	flag.Parse()

	if *showHelp || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}
	if *runVerbose {
		xvol.SetLogMode(xvol.DebugMode)
	}
	if *configFile != "" {
		var cfg tomlConfig
		if _, err := toml.DecodeFile(*configFile, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "cannot read config %s: %v\n", *configFile, err)
			os.Exit(1)
		}
		cfg.Log.SetLogger()
		if cfg.Write.Compress {
			*compress = true
		}
		if cfg.Write.TwoFile {
			*twoFile = true
		}
	}

	args := flag.Args()
	var err error
	switch strings.ToLower(args[0]) {
	case "help":
		flag.Usage()
	case "about":
		fmt.Printf("xvol volume tool, file format version %s\n", volume.FileVersion)
	case "info":
		err = doInfo(args[1:])
	case "convert":
		err = doConvert(args[1:])
	case "anonymize":
		err = doAnonymize(args[1:])
	case "import":
		err = doImport(args[1:])
	default:
		err = fmt.Errorf("unknown command %q", args[0])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func doInfo(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("info wants one volume file")
	}
	v := volume.New()
	if err := v.Load(args[0]); err != nil {
		return err
	}
	buf := v.Buffer()
	size := buf.Size()
	min, max := buf.MinMax()
	winMin, winMax := v.Display().Window()
	acq := v.Acquisition()

	fmt.Printf("File:        %s\n", v.Filename())
	fmt.Printf("Array ID:    %s\n", v.ArrayID())
	fmt.Printf("Space ID:    %s\n", v.SpaceID())
	fmt.Printf("Size:        %d x %d x %d, %d component(s)\n",
		size[0], size[1], size[2], buf.Components())
	fmt.Printf("Datatype:    %s (%s in memory)\n", buf.DataType(),
		humanize.Bytes(uint64(len(buf.Bytes()))))
	fmt.Printf("Spacing:     %s mm\n", buf.Spacing())
	fmt.Printf("Origin:      %s\n", buf.Origin())
	fmt.Printf("Orientation: %s\n", v.OrientationKind())
	fmt.Printf("Modality:    %s, sequence %q, unit %q\n",
		acq.Modality(), acq.Sequence(), acq.Unit())
	fmt.Printf("Range:       [%g, %g], window [%g, %g]\n", min, max, winMin, winMax)
	if id := v.Identity(); !id.IsAnonymized() {
		fmt.Printf("Patient:     %s %s, %s, born %s\n", id.Firstname(), id.Lastname(),
			id.Gender(), id.Birthdate().Format(attr.DateFormat))
	} else {
		fmt.Printf("Patient:     anonymized\n")
	}
	if acpc := v.ACPC(); acpc.HasACPC() {
		fmt.Printf("AC-PC:       AC %s, PC %s, distance %.1f mm\n",
			acpc.AC(), acpc.PC(), acpc.ACPCDistance())
	}
	if n := v.Transforms().Count(); n > 0 {
		fmt.Printf("Transforms:  %d (%s)\n", n, strings.Join(v.Transforms().IDs(), ", "))
	}
	return nil
}

func doConvert(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("convert wants an input and an output volume file")
	}
	v := volume.New()
	if err := v.Load(args[0]); err != nil {
		return err
	}
	v.SetCompressed(*compress)
	if *twoFile {
		return v.SaveTwoFile(args[1])
	}
	return v.Save(args[1])
}

func doAnonymize(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("anonymize wants one volume file")
	}
	v := volume.New()
	if err := v.Load(args[0]); err != nil {
		return err
	}
	v.Identity().Anonymize()
	v.SetCompressed(*compress)
	if *twoFile {
		return v.SaveTwoFile(args[0])
	}
	return v.Save(args[0])
}

func doImport(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("import wants a NIfTI input and a volume output")
	}
	v, err := volume.ImportNIfTI(args[0])
	if err != nil {
		return err
	}
	v.SetCompressed(*compress)
	if *twoFile {
		return v.SaveTwoFile(args[1])
	}
	return v.Save(args[1])
}

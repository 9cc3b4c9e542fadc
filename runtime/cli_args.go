package runtime

// CliArgs holds the command-line flags that shape a run. They are filled by
// the cobra root command.
type CliArgs struct {
	DryRun    bool
	AssumeYes bool
	Verbose   bool

	Only []string
	Skip []string

	// RemoteHostLimit is a regular expression matched against remote host
	// names.
	RemoteHostLimit string

	ShowSkipped bool
	ConfigPath  string
	LogDir      string
	NoHistory   bool
}

// NewCliArgs creates a new instance of CliArgs with default values.
func NewCliArgs() *CliArgs {
	return &CliArgs{}
}

package sudo

import (
	"fmt"
	"strings"

	"github.com/mensylisir/xmupgrade/common"
	"github.com/mensylisir/xmupgrade/executor"
)

// Kind is a privilege escalation mechanism.
type Kind int

const (
	// KindNone means no mechanism was found. Elevated commands are skipped.
	KindNone Kind = iota
	// KindNull runs commands unchanged, e.g. when already root.
	KindNull
	KindSudo
	KindWinSudo
	KindDoas
	KindGsudo
	KindPkexec
	KindRun0
	KindPlease
)

var kindNames = map[Kind]string{
	KindNone:    "none",
	KindNull:    "null",
	KindSudo:    "sudo",
	KindWinSudo: "winsudo",
	KindDoas:    "doas",
	KindGsudo:   "gsudo",
	KindPkexec:  "pkexec",
	KindRun0:    "run0",
	KindPlease:  "please",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Binary is the program looked up on PATH for k.
func (k Kind) Binary() string {
	switch k {
	case KindNone, KindNull:
		return ""
	case KindWinSudo:
		return `C:\Windows\System32\sudo.exe`
	default:
		return k.String()
	}
}

// DetectOrder is the order in which mechanisms are probed on p.
func DetectOrder(p common.Platform) []Kind {
	if p == common.Windows {
		return []Kind{KindGsudo, KindWinSudo}
	}
	return []Kind{KindDoas, KindSudo, KindPkexec, KindRun0, KindPlease}
}

// ParseKind maps a configured name onto a Kind. "sudo" means the Windows
// built-in sudo on Windows.
func ParseKind(name string, p common.Platform) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "sudo" && p == common.Windows {
		return KindWinSudo, nil
	}
	for k, n := range kindNames {
		if n == name && k != KindNone {
			return k, nil
		}
	}
	return KindNone, fmt.Errorf("unknown sudo_command %q", name)
}

// UnsupportedError reports an elevation option the mechanism cannot honour.
type UnsupportedError struct {
	Kind   Kind
	Option string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s does not support the %s option", e.Kind, e.Option)
}

// preAuthArgs is the command used to cache credentials ahead of time.
func (k Kind) preAuthArgs() []string {
	switch k {
	case KindSudo:
		return []string{"-v"}
	case KindDoas, KindPkexec, KindRun0:
		return []string{"echo"}
	case KindPlease:
		return []string{"-w"}
	case KindGsudo:
		return []string{"-d", "cmd.exe", "/c", "rem"}
	case KindWinSudo:
		return []string{"cmd.exe", "/c", "rem"}
	}
	return nil
}

// invalidateArgs drops cached credentials. Nil means nothing is cached.
func (k Kind) invalidateArgs() []string {
	switch k {
	case KindSudo:
		return []string{"-k"}
	case KindDoas:
		return []string{"-L"}
	case KindGsudo:
		return []string{"-k"}
	}
	return nil
}

// wrapArgs returns the arguments placed between the mechanism binary and the
// wrapped program.
func (k Kind) wrapArgs(opts executor.Elevation) ([]string, error) {
	unsupported := func(option string) error { return &UnsupportedError{Kind: k, Option: option} }

	if k == KindNull {
		if opts.LoginShell {
			return nil, unsupported("login_shell")
		}
		if opts.User != "" {
			return nil, unsupported("user")
		}
		return nil, nil
	}

	var args []string

	if opts.LoginShell {
		switch k {
		case KindSudo:
			args = append(args, "-i")
		case KindGsudo:
		default:
			return nil, unsupported("login_shell")
		}
	} else if k == KindGsudo {
		args = append(args, "-d")
	}

	switch {
	case opts.PreserveEnv:
		switch k {
		case KindSudo:
			args = append(args, "-E")
		case KindGsudo:
			args = append(args, "--copyEV")
		default:
			return nil, unsupported("preserve_env")
		}
	case len(opts.PreserveEnvList) > 0:
		switch k {
		case KindSudo:
			args = append(args, "--preserve-env="+strings.Join(opts.PreserveEnvList, ","))
		case KindRun0:
			for _, v := range opts.PreserveEnvList {
				args = append(args, "--setenv="+v)
			}
		case KindPlease:
			args = append(args, "-a", strings.Join(opts.PreserveEnvList, ","))
		default:
			return nil, unsupported("preserve_env_list")
		}
	}

	if opts.SetHome {
		if k != KindSudo {
			return nil, unsupported("set_home")
		}
		args = append(args, "-H")
	}

	if opts.User != "" {
		switch k {
		case KindSudo, KindDoas, KindGsudo, KindRun0, KindPlease:
			args = append(args, "-u", opts.User)
		case KindPkexec:
			args = append(args, "--user", opts.User)
		default:
			return nil, unsupported("user")
		}
	}
	return args, nil
}

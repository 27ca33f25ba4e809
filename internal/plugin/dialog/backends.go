package dialog

import (
	"strings"
)

var darwinBackend = backend{
	name: "osascript",
	message: func(title, text string) invocation {
		return osascript(`display dialog ` + appleString(text) + ` with title ` + appleString(title) +
			` buttons {"OK"} default button "OK"`)
	},
	ask: func(title, text string) invocation {
		return osascript(`display dialog ` + appleString(text) + ` with title ` + appleString(title) +
			` buttons {"No", "Yes"} default button "Yes"`)
	},
	yes: "button returned:Yes",
	open: func(title string, directory bool) invocation {
		chooser := "choose file"
		if directory {
			chooser = "choose folder"
		}
		return osascript(`POSIX path of (` + chooser + ` with prompt ` + appleString(title) + `)`)
	},
}

var zenityBackend = backend{
	name: "zenity",
	message: func(title, text string) invocation {
		return invocation{program: "zenity", args: []string{"--info", "--title=" + title, "--text=" + text}}
	},
	ask: func(title, text string) invocation {
		return invocation{program: "zenity", args: []string{"--question", "--title=" + title, "--text=" + text}}
	},
	open: func(title string, directory bool) invocation {
		args := []string{"--file-selection", "--title=" + title}
		if directory {
			args = append(args, "--directory")
		}
		return invocation{program: "zenity", args: args}
	},
}

var windowsBackend = backend{
	name: "powershell",
	message: func(title, text string) invocation {
		return powershell(`Add-Type -AssemblyName PresentationFramework; ` +
			`[System.Windows.MessageBox]::Show(` + psString(text) + `, ` + psString(title) + `) | Out-Null`)
	},
	ask: func(title, text string) invocation {
		return powershell(`Add-Type -AssemblyName PresentationFramework; ` +
			`[System.Windows.MessageBox]::Show(` + psString(text) + `, ` + psString(title) + `, 'YesNo') | Write-Output`)
	},
	yes: "Yes",
	open: func(title string, directory bool) invocation {
		if directory {
			return powershell(`Add-Type -AssemblyName System.Windows.Forms; ` +
				`$d = New-Object System.Windows.Forms.FolderBrowserDialog; $d.Description = ` + psString(title) + `; ` +
				`if ($d.ShowDialog() -eq 'OK') { $d.SelectedPath } else { exit 1 }`)
		}
		return powershell(`Add-Type -AssemblyName System.Windows.Forms; ` +
			`$d = New-Object System.Windows.Forms.OpenFileDialog; $d.Title = ` + psString(title) + `; ` +
			`if ($d.ShowDialog() -eq 'OK') { $d.FileName } else { exit 1 }`)
	},
}

func osascript(script string) invocation {
	return invocation{program: "osascript", args: []string{"-e", script}}
}

func powershell(script string) invocation {
	return invocation{program: "powershell", args: []string{"-NoProfile", "-NonInteractive", "-Command", script}}
}

// appleString quotes s as an AppleScript string literal.
func appleString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// psString quotes s as a single-quoted PowerShell string literal.
func psString(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}

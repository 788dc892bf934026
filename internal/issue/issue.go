// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	EngineNotFoundId Id = iota + 1
	NoFreePortId
	PortBindRaceId
	ReadinessTimeoutId
	ConfigLoadFailedId
	MonitorStartFailedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // catalog key
	mdMsg    MarkdownMsg // markdown body, rendered through glamour
	docLinks []HttpLink  // links into our own docs
	extLinks []HttpLink  // upstream links worth a look
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	md := string(i.mdMsg)
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md += "\n\n## See also\n"
		for _, link := range i.docLinks {
			md += "- <" + string(link) + ">\n"
		}
		for _, link := range i.extLinks {
			md += "- <" + string(link) + ">\n"
		}
	}
	return render(md, stylePath)
}

var (
	render = glamour.Render

	engineNotFoundIssue = &Issue{
		id: EngineNotFoundId,
		mdMsg: `
# Maxima executable not found!

We could not resolve the engine command on your PATH, so there is nothing
to launch.

## Things you can try:
- Install Maxima:
  - Linux: ` + "`sudo apt install maxima`" + ` or ` + "`sudo dnf install maxima`" + `
  - macOS: ` + "`brew install maxima`" + `
  - Windows: download from https://maxima.sourceforge.io

- Check what the shell sees:
~~~
$ command -v maxima
~~~

- Point maxbridge at a specific binary in ~/.config/maxbridge/config.cue:
~~~cue
engine: {
    command: "/opt/maxima/bin/maxima"
}
~~~`,
		extLinks: []HttpLink{"https://maxima.sourceforge.io"},
	}

	noFreePortIssue = &Issue{
		id: NoFreePortId,
		mdMsg: `
# No free port in the configured range!

Every port in the configured range is already taken, so the server has
nowhere to listen.

## Things you can try:
- See what is holding the ports:
~~~
$ ss -ltnp | grep 640
~~~

- Stop stale maxbridge or Maxima processes still bound in the range

- Widen the range in your config:
~~~cue
server: {
    port_range: {lo: 64000, hi: 64200}
}
~~~`,
	}

	portBindRaceIssue = &Issue{
		id: PortBindRaceId,
		mdMsg: `
# Listen port was grabbed by another process!

The port probed as free (or pinned from an earlier run) was taken by
another process before the server could bind it. We retry once before
giving up, so this port is genuinely gone.

## Things you can try:
- Find the new owner of the port:
~~~
$ ss -ltnp | grep <port>
~~~

- Retry the start; a fresh instance probes the range again

- Move to a quieter range in your config:
~~~cue
server: {
    port_range: {lo: 64100, hi: 64200}
}
~~~`,
	}

	readinessTimeoutIssue = &Issue{
		id: ReadinessTimeoutId,
		mdMsg: `
# Engine never became ready!

The engine process was launched, but its first input prompt never showed
up on the callback connection within the poll budget.

## Common causes:
- The engine crashed during startup (check the output tail in the logs)
- The engine ignores the ` + "`-s <port>`" + ` callback argument
- Startup is genuinely slower than the configured budget

## Things you can try:
- Run the engine by hand and watch its startup output:
~~~
$ maxima -s 64000
~~~

- Raise the poll budget in your config:
~~~cue
readiness: {
    poll_interval:   "1s"
    max_poll_cycles: 30
}
~~~

- Run ` + "`maxbridge serve --verbose`" + ` to see the captured engine
  output`,
		extLinks: []HttpLink{"https://maxima.sourceforge.io/docs.html"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Could not load the maxbridge configuration file.

## Configuration file locations:
- Linux: ~/.config/maxbridge/config.cue
- macOS: ~/Library/Application Support/maxbridge/config.cue
- Windows: %APPDATA%\maxbridge\config.cue

## Things you can try:
- Create a default configuration:
~~~
$ maxbridge config init
~~~

- Check the configuration syntax
- Remove the config file to use defaults:
~~~
$ rm ~/.config/maxbridge/config.cue
~~~

## Example configuration:
~~~cue
server: {
    host: "localhost"
    port_range: {lo: 64000, hi: 64100}
}

engine: {
    command: "maxima"
}

log: {
    level: "info"
}
~~~`,
	}

	monitorStartFailedIssue = &Issue{
		id: MonitorStartFailedId,
		mdMsg: `
# Monitor endpoint failed to start!

The HTTP listener serving /healthz, /statusz and /metrics could not come
up.

## Things you can try:
- Check whether the monitor address is already in use:
~~~
$ ss -ltnp | grep 9390
~~~

- Move the monitor in your config:
~~~cue
monitor: {
    addr: "127.0.0.1:9391"
}
~~~

- Or disable it if you do not need it:
~~~cue
monitor: {
    enabled: false
}
~~~`,
	}

	issues = map[Id]*Issue{
		engineNotFoundIssue.Id():     engineNotFoundIssue,
		noFreePortIssue.Id():         noFreePortIssue,
		portBindRaceIssue.Id():       portBindRaceIssue,
		readinessTimeoutIssue.Id():   readinessTimeoutIssue,
		configLoadFailedIssue.Id():   configLoadFailedIssue,
		monitorStartFailedIssue.Id(): monitorStartFailedIssue,
	}
)

// Values returns every catalog entry, ordered by ID.
func Values() []*Issue {
	all := maps.Values(issues)
	slices.SortFunc(all, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return all
}

func Get(id Id) *Issue {
	return issues[id]
}

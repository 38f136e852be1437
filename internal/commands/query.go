package commands

import (
	"strings"

	"github.com/danmuck/graphctl/internal/graphhost"
	"github.com/danmuck/graphctl/internal/protocol"
	"github.com/danmuck/graphctl/internal/session"
)

func handlePing(_ protocol.Command, st *State) protocol.Response {
	info := st.Host.Info()
	return protocol.OK("pong").
		With("engine", info.Name).
		With("version", info.Version).
		With("features", info.Features).
		With("actions", len(Handlers())).
		With("state", st.Session.State().String())
}

func handleGetGraphInputNames(_ protocol.Command, st *State) protocol.Response {
	names, err := st.Session.GraphInputNames()
	if err != nil {
		return protocol.Fail(err)
	}
	return protocol.OKf("%d graph inputs", len(names)).
		With("names", names).
		With("count", len(names))
}

type listNodeClassesParams struct {
	Filter string `json:"filter"`
}

func handleListNodeClasses(cmd protocol.Command, st *State) protocol.Response {
	var p listNodeClassesParams
	if resp, ok := bind(cmd, &p); !ok {
		return resp
	}
	aliases := st.Registry.Aliases(p.Filter)
	return protocol.OKf("%d node types", len(aliases)).
		With("node_types", aliases).
		With("count", len(aliases))
}

func handleReloadNodeTypes(_ protocol.Command, st *State) protocol.Response {
	if err := st.Registry.Reload(); err != nil {
		return protocol.Failf(protocol.KindHost, "Failed to reload node types: %v", err)
	}
	n := st.Registry.Len()
	return protocol.OKf("Reloaded %d node types", n).With("count", n)
}

func handleGetSession(_ protocol.Command, st *State) protocol.Response {
	snap := st.Session.Snapshot()
	return protocol.OKf("Session is %s", snap.State).With("session", snap)
}

type listAssetsParams struct {
	Path string `json:"path"`
}

// handleListAssets enumerates built assets under path, which defaults to
// the content root.
func handleListAssets(cmd protocol.Command, st *State) protocol.Response {
	var p listAssetsParams
	if resp, ok := bind(cmd, &p); !ok {
		return resp
	}
	root := st.Session.ContentRoot()
	path := strings.TrimSpace(p.Path)
	if path == "" {
		path = root
	}
	if err := session.ValidateAssetPath(root, path); err != nil {
		return protocol.Fail(err)
	}
	lister, ok := st.Host.(graphhost.AssetLister)
	if !ok {
		return protocol.Failf(protocol.KindHost, "Host '%s' cannot list assets", st.Host.Info().Name)
	}
	assets, err := lister.ListAssets(strings.TrimRight(path, "/") + "/")
	if err != nil {
		return protocol.Failf(protocol.KindHost, "Failed to list assets under '%s': %v", path, err)
	}
	if assets == nil {
		assets = []string{}
	}
	return protocol.OKf("%d assets under %s", len(assets), path).
		With("path", path).
		With("assets", assets).
		With("count", len(assets))
}

package client

import "github.com/pipewright/pipewright/internal/rpc"

type constructor func(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any

// constructors is the registration table from protocol type tags to proxy
// constructors, populated once at startup. BrowserContext is handled apart:
// it is the one tag whose construction depends on the parent object.
var constructors = map[string]constructor{
	"Artifact":       newArtifact,
	"BindingCall":    newBindingCall,
	"Browser":        newBrowser,
	"BrowserType":    newBrowserType,
	"CDPSession":     newCDPSession,
	"ConsoleMessage": newConsoleMessage,
	"Dialog":         newDialog,
	"Download":       newDownload,
	"ElementHandle":  newElementHandle,
	"Frame":          newFrame,
	"JSHandle":       newJSHandle,
	"Page":           newPage,
	"Playwright":     newPlaywright,
	"Request":        newRequest,
	"Response":       newResponse,
	"Route":          newRoute,
	"Selectors":      newSelectors,
	"Stream":         newStream,
	"WebSocket":      newWebSocket,
	"Worker":         newWorker,
}

// NewRemoteObject is the rpc.ObjectFactory for this proxy surface. A tag the
// table does not know yields an inert placeholder that still takes part in
// identity and lifecycle bookkeeping, so a newer driver does not break the
// connection.
func NewRemoteObject(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	if objType == "BrowserContext" {
		return newBrowserContextFor(parent, objType, guid, initializer)
	}
	if ctor, ok := constructors[objType]; ok {
		return ctor(parent, objType, guid, initializer)
	}
	return newDummyObject(parent, objType, guid, initializer)
}

// DummyObject is the graceful-degradation placeholder for unknown type tags.
type DummyObject struct {
	*rpc.ChannelOwner
}

func newDummyObject(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	d := &DummyObject{ChannelOwner: rpc.NewChannelOwner(parent, objType, guid, initializer)}
	d.Bind(d)
	return d
}

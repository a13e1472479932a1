package domain

import "github.com/google/uuid"

// Page identifies which top-level view is open.
type Page string

const (
	PageHome        Page = "home"
	PageCollections Page = "collections"
)

// Request is a saved request inside a collection.
type Request struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	Method  Method `json:"method"`
	Body    string `json:"body"`
	Headers []Pair `json:"headers"`
	Params  []Pair `json:"params"`

	// Response holds the last raw response received for this request.
	Response string `json:"response"`
}

// NewRequest creates an empty GET request with a fresh id.
func NewRequest(name string) Request {
	return Request{
		ID:      uuid.NewString(),
		Name:    name,
		Method:  MethodGet,
		Headers: []Pair{},
		Params:  []Pair{},
	}
}

// Compose builds a ComposedRequest from the saved request using the given
// correlation index.
func (r Request) Compose(index int) ComposedRequest {
	return ComposedRequest{
		URL:     r.URL,
		Method:  r.Method,
		Body:    r.Body,
		Headers: clonePairs(r.Headers),
		Params:  clonePairs(r.Params),
		Index:   index,
	}
}

// Clone returns a deep copy of the request.
func (r Request) Clone() Request {
	r.Headers = clonePairs(r.Headers)
	r.Params = clonePairs(r.Params)
	return r
}

// Collection is a named, ordered group of requests.
type Collection struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Requests  []Request `json:"requests"`
	Collapsed bool      `json:"collapsed"`
}

// NewCollection creates an empty collection with a fresh id.
func NewCollection(name string) Collection {
	return Collection{
		ID:       uuid.NewString(),
		Name:     name,
		Requests: []Request{},
	}
}

// Clone returns a deep copy of the collection.
func (c Collection) Clone() Collection {
	if c.Requests != nil {
		requests := make([]Request, len(c.Requests))
		for i, r := range c.Requests {
			requests[i] = r.Clone()
		}
		c.Requests = requests
	}
	return c
}

// Find returns the request with the given id.
func (c Collection) Find(id string) (Request, bool) {
	for _, r := range c.Requests {
		if r.ID == id {
			return r, true
		}
	}
	return Request{}, false
}

// RequestRef points at the open request of the root collection.
type RequestRef struct {
	Request string `json:"request"`
}

// CollectionRef points at the open request of a named collection.
type CollectionRef struct {
	Collection string `json:"collection"`
	Request    string `json:"request"`
}

// Workspace is the full persisted state of the user's open collections,
// requests and navigation.
type Workspace struct {
	Page              Page                  `json:"page"`
	CurrentRequest    RequestRef            `json:"main_current"`
	CurrentCollection CollectionRef         `json:"col_current"`
	Root              Collection            `json:"main_col"`
	Collections       map[string]Collection `json:"collections"`
}

// NewWorkspace returns the workspace shown on first launch.
func NewWorkspace() Workspace {
	root := NewCollection("main")
	first := NewRequest("New Request")
	root.Requests = append(root.Requests, first)

	return Workspace{
		Page:           PageHome,
		CurrentRequest: RequestRef{Request: first.ID},
		Root:           root,
		Collections:    map[string]Collection{},
	}
}

// Clone returns a deep copy of the workspace.
func (w Workspace) Clone() Workspace {
	w.Root = w.Root.Clone()
	if w.Collections != nil {
		collections := make(map[string]Collection, len(w.Collections))
		for id, c := range w.Collections {
			collections[id] = c.Clone()
		}
		w.Collections = collections
	}
	return w
}

// ActiveRequest resolves the request currently open on the active page.
func (w Workspace) ActiveRequest() (Request, bool) {
	if w.Page == PageCollections {
		c, ok := w.Collections[w.CurrentCollection.Collection]
		if !ok {
			return Request{}, false
		}
		return c.Find(w.CurrentCollection.Request)
	}
	return w.Root.Find(w.CurrentRequest.Request)
}

func clonePairs(pairs []Pair) []Pair {
	if pairs == nil {
		return nil
	}
	out := make([]Pair, len(pairs))
	copy(out, pairs)
	return out
}

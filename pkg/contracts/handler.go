package contracts

import "github.com/julienschmidt/httprouter"

type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// StreamHandler registers long-lived streaming routes that are kept off the
// main middleware chain.
type StreamHandler interface {
	RegisterStreamRoutes(*httprouter.Router)
}

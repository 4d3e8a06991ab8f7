package scenes

import (
	"net/http"

	"github.com/juju/errors"

	"github.com/Vasu1712/scenyx-stage/internal/dmx"
	"github.com/Vasu1712/scenyx-stage/internal/stage"
	"github.com/Vasu1712/scenyx-stage/internal/wire"
)

// classify maps an operation error to its wire kind and HTTP status.
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, wire.ErrDecode):
		return wire.KindDecode, http.StatusBadRequest
	case errors.Is(err, stage.ErrExternalScene):
		return wire.KindExternalSceneReadOnly, http.StatusBadRequest
	case errors.Is(err, dmx.ErrChannelLengthMismatch):
		return wire.KindChannelLengthMismatch, http.StatusBadRequest
	case errors.Is(err, dmx.ErrInvalidIndex):
		return wire.KindInvalidIndex, http.StatusBadRequest
	case errors.Is(err, stage.ErrInvalidSceneID):
		return wire.KindInvalidSceneID, http.StatusBadRequest
	case errors.Is(err, errors.AlreadyExists):
		return wire.KindDuplicateName, http.StatusBadRequest
	case errors.Is(err, errors.NotValid):
		return wire.KindInvalidArgument, http.StatusBadRequest
	case errors.Is(err, errors.NotFound):
		return wire.KindNotFound, http.StatusNotFound
	}
	return wire.KindInternal, http.StatusInternalServerError
}

// toWireError builds the error body for err. Internal faults are logged and
// not described to the caller.
func toWireError(method string, err error) (*wire.Error, int) {
	kind, status := classify(err)
	if kind == wire.KindInternal {
		logger.Errorf("%s: %s", method, errors.ErrorStack(err))
		return &wire.Error{Kind: kind, Message: "internal error"}, status
	}
	logger.Debugf("%s rejected: %v", method, err)
	return &wire.Error{Kind: kind, Message: err.Error()}, status
}

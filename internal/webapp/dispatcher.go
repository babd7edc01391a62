package webapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/phuslu/log"
	"nuha.dev/locshare/internal/contact"
	"nuha.dev/locshare/internal/position"
	"nuha.dev/locshare/internal/relay"
	"nuha.dev/locshare/internal/store"
	"nuha.dev/locshare/internal/util"
	"nuha.dev/locshare/internal/webapp/common"
)

// Dispatcher exposes handlers of the form func(ctx, *Req, *Res) error (or func(ctx, *Res) error)
// as POST /func/{name}, decoding and validating the JSON request body.
type Dispatcher struct {
	funcs     map[string]_function
	validator *validator.Validate
	log       log.Logger
}

type _function struct {
	reqType reflect.Type
	resType reflect.Type
	handler reflect.Value
}

func NewDispatcher() *Dispatcher {
	d := &Dispatcher{}
	d.funcs = make(map[string]_function)
	d.validator = validator.New()
	d.log = log.DefaultLogger
	d.log.Context = log.NewContext(nil).Str("module", "dispatcher").Value()
	return d
}

func (disp *Dispatcher) Call(funcname string, w http.ResponseWriter, r *http.Request) {
	_func, ok := disp.funcs[funcname]
	if !ok {
		write_error(w, http.StatusNotFound, fmt.Sprintf("function \"%s\" not found", funcname))
		return
	}
	disp.call(funcname, _func, r, w)
}

func (disp *Dispatcher) call(funcname string, _func _function, r *http.Request, w http.ResponseWriter) {
	response := reflect.New(_func.resType)
	var err_ref []reflect.Value
	ctx := r.Context()
	if _func.reqType != nil {
		request := reflect.New(_func.reqType)
		err := json.NewDecoder(r.Body).Decode(request.Interface())
		if err != nil {
			write_error(w, http.StatusBadRequest, err.Error())
			return
		}
		err = disp.validator.Struct(request.Interface())
		if err != nil {
			write_error(w, http.StatusBadRequest, err.Error())
			return
		}
		err_ref = _func.handler.Call([]reflect.Value{reflect.ValueOf(ctx), request, response})
	} else {
		err_ref = _func.handler.Call([]reflect.Value{reflect.ValueOf(ctx), response})
	}
	if !err_ref[0].IsNil() {
		err := err_ref[0].Interface().(error)
		status := status_of(err)
		if status >= 500 {
			disp.log.Error().Err(err).Str("func", funcname).Msg("handler failed")
		} else {
			disp.log.Debug().Err(err).Str("func", funcname).Msg("request rejected")
		}
		write_error(w, status, err.Error())
		return
	}
	util.JsonWrite(w, response.Interface())
}

func status_of(err error) int {
	switch {
	case errors.Is(err, position.ErrInvalidSample), errors.Is(err, contact.ErrInvalidContact):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrContactNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrContactExists):
		return http.StatusConflict
	case errors.Is(err, relay.ErrPersistenceFailed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func write_error(w http.ResponseWriter, status int, msg string) {
	util.JsonWriteStatus(w, status, common.BasicResponse{Status: status, Message: msg})
}

func (disp *Dispatcher) Add(funcname string, f interface{}) {
	s := _function{}
	s.handler = reflect.ValueOf(f)
	if s.handler.Type().NumIn() == 2 {
		s.reqType = nil
		s.resType = s.handler.Type().In(1).Elem()
	} else {
		s.reqType = s.handler.Type().In(1).Elem()
		s.resType = s.handler.Type().In(2).Elem()
	}
	disp.funcs[funcname] = s
}

package messenger

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/sim-x/simx-sub002/packed"
)

// Info is the body of a control message. Every concrete Info type must be
// registered with RegisterInfo so that the receiving side can recreate it.
type Info interface {
	packed.Packable
}

type infoRegistry struct {
	lock  sync.RWMutex
	types map[string]reflect.Type
}

var registry = infoRegistry{
	types: make(map[string]reflect.Type),
}

func infoType(info Info) reflect.Type {
	t := reflect.TypeOf(info)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	return t
}

// ClassType returns the name an Info type is registered under.
func ClassType(info Info) string {
	t := infoType(info)
	return t.PkgPath() + "." + t.Name()
}

// RegisterInfo registers the type of example. The pointer to the type must
// implement Info.
func RegisterInfo(example Info) error {
	registry.lock.Lock()
	defer registry.lock.Unlock()

	name := ClassType(example)
	if _, found := registry.types[name]; found {
		return fmt.Errorf("info type %s is already registered", name)
	}

	registry.types[name] = infoType(example)

	return nil
}

// MustRegisterInfo is like RegisterInfo but panics on error. It is meant for
// package initialization.
func MustRegisterInfo(example Info) {
	err := RegisterInfo(example)
	if err != nil {
		panic(err)
	}
}

// CreateInfo creates a zero Info of a registered class type.
func CreateInfo(classType string) (Info, error) {
	registry.lock.RLock()
	defer registry.lock.RUnlock()

	t, found := registry.types[classType]
	if !found {
		return nil, fmt.Errorf("info type %s is not registered", classType)
	}

	info, ok := reflect.New(t).Interface().(Info)
	if !ok {
		return nil, fmt.Errorf("*%s does not implement Info", classType)
	}

	return info, nil
}

// Package registry keeps the audio backends linked into the binary,
// ordered by preference.
package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/xaionaro-go/voiceactivity/pkg/audio/types"
)

type PlayerPCMFactory interface {
	NewPlayerPCM() (types.PlayerPCM, error)
}

type RecorderPCMFactory interface {
	NewRecorderPCM() (types.RecorderPCM, error)
}

type withPriority[F any] struct {
	Priority int
	Factory  F
}

// Registry is a set of factories of a kind, one per factory type.
type Registry[F any] struct {
	locker    sync.Mutex
	factories map[reflect.Type]withPriority[F]
}

func (r *Registry[F]) Register(priority int, factory F) {
	t := reflect.ValueOf(factory).Type()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	r.locker.Lock()
	defer r.locker.Unlock()
	if r.factories == nil {
		r.factories = map[reflect.Type]withPriority[F]{}
	}
	if _, ok := r.factories[t]; ok {
		panic(fmt.Errorf("there is already registered a factory of type %v", t))
	}
	r.factories[t] = withPriority[F]{
		Priority: priority,
		Factory:  factory,
	}
}

// Factories returns the registered factories, the highest priority first.
// Factories of equal priority are ordered by the type name.
func (r *Registry[F]) Factories() []F {
	r.locker.Lock()
	var all []withPriority[F]
	for _, factory := range r.factories {
		all = append(all, factory)
	}
	r.locker.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Priority != all[j].Priority {
			return all[i].Priority > all[j].Priority
		}
		return fmt.Sprintf("%T", all[i].Factory) < fmt.Sprintf("%T", all[j].Factory)
	})

	result := make([]F, 0, len(all))
	for _, factory := range all {
		result = append(result, factory.Factory)
	}
	return result
}

var (
	players   Registry[PlayerPCMFactory]
	recorders Registry[RecorderPCMFactory]
)

func RegisterPlayerFactory(priority int, factory PlayerPCMFactory) {
	players.Register(priority, factory)
}

func PlayerFactories() []PlayerPCMFactory {
	return players.Factories()
}

func RegisterRecorderFactory(priority int, factory RecorderPCMFactory) {
	recorders.Register(priority, factory)
}

func RecorderFactories() []RecorderPCMFactory {
	return recorders.Factories()
}

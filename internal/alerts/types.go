package alerts

import (
	"fmt"
	"time"
)

// Condition identifies one alertable condition on a service.
type Condition string

const (
	ConditionDown   Condition = "down"
	ConditionHealth Condition = "health"
	ConditionCPU    Condition = "cpu"
	ConditionMemory Condition = "memory"
	ConditionErrors Condition = "errors"
)

// Key addresses one alert state slot: a (service, condition) pair.
type Key struct {
	Service   string
	Condition Condition
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Condition, k.Service)
}

// ServiceKeys returns every key scoped to a service. Used on recovery, which
// resets all conditions for the service.
func ServiceKeys(service string) []Key {
	return []Key{
		{Service: service, Condition: ConditionDown},
		{Service: service, Condition: ConditionHealth},
		{Service: service, Condition: ConditionCPU},
		{Service: service, Condition: ConditionMemory},
		{Service: service, Condition: ConditionErrors},
	}
}

type Status string

const (
	StatusFiring   Status = "firing"
	StatusResolved Status = "resolved"
)

type Event struct {
	Key       Key
	Status    Status
	Severity  string
	Title     string
	Message   string
	Details   []Detail
	Timestamp time.Time
}

type Detail struct {
	Label string
	Value string
}

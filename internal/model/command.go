package model

import (
	"errors"
	"fmt"
	"strings"
)

// Action is a Terraform action the pipeline knows how to run.
type Action string

// Supported actions.
const (
	ActionPlan    Action = "plan"
	ActionApply   Action = "apply"
	ActionDestroy Action = "destroy"
)

// Actions lists every supported action in display order.
var Actions = []Action{ActionPlan, ActionApply, ActionDestroy}

// Module is a Terraform root module the pipeline can target.
type Module string

// Supported modules.
const (
	ModuleAWSEC2 Module = "aws_ec2"
)

// Modules lists every supported module in display order.
var Modules = []Module{ModuleAWSEC2}

// moduleAliases maps short names accepted from chat to canonical modules.
// It is the only normalization applied to module names.
var moduleAliases = map[string]Module{
	"ec2": ModuleAWSEC2,
}

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrUnknownModule = errors.New("unknown module")
)

// ValidationError reports which command field was rejected and the value
// the user typed for it (lowercased, empty when the token was missing).
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ParseAction returns the Action named by s, ignoring case.
func ParseAction(s string) (Action, error) {
	v := strings.ToLower(s)
	for _, a := range Actions {
		if string(a) == v {
			return a, nil
		}
	}
	return "", &ValidationError{Field: "action", Value: v, Err: ErrUnknownAction}
}

// ParseModule resolves aliases and returns the Module named by s, ignoring case.
func ParseModule(s string) (Module, error) {
	v := strings.ToLower(s)
	if m, ok := moduleAliases[v]; ok {
		return m, nil
	}
	for _, m := range Modules {
		if string(m) == v {
			return m, nil
		}
	}
	return "", &ValidationError{Field: "module", Value: v, Err: ErrUnknownModule}
}

// Command is a validated request to run Action against Module.
type Command struct {
	Action Action
	Module Module
}

// ParseCommand parses slash-command text of the form "<action> <module>".
// The action is checked first; extra tokens after the module are ignored.
func ParseCommand(text string) (Command, error) {
	fields := strings.Fields(text)

	var rawAction, rawModule string
	if len(fields) > 0 {
		rawAction = fields[0]
	}
	if len(fields) > 1 {
		rawModule = fields[1]
	}

	action, err := ParseAction(rawAction)
	if err != nil {
		return Command{}, err
	}
	module, err := ParseModule(rawModule)
	if err != nil {
		return Command{}, err
	}

	return Command{Action: action, Module: module}, nil
}

// ActionNames returns the supported action names.
func ActionNames() []string {
	names := make([]string, len(Actions))
	for i, a := range Actions {
		names[i] = string(a)
	}
	return names
}

// ModuleNames returns the supported canonical module names.
func ModuleNames() []string {
	names := make([]string, len(Modules))
	for i, m := range Modules {
		names[i] = string(m)
	}
	return names
}

// ModuleAliasNames returns the short aliases users may type, sorted by module order.
func ModuleAliasNames() []string {
	var names []string
	for _, m := range Modules {
		for alias, target := range moduleAliases {
			if target == m {
				names = append(names, alias)
			}
		}
	}
	return names
}

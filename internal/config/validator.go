package config

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	pilerrors "github.com/alexisbeaulieu97/canvaspilot/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	semverPattern = regexp.MustCompile(`^\d+\.\d+(\.\d+)?$`)
	stepIDPattern = regexp.MustCompile(`^[a-z0-9_]+$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("semver", func(fl validator.FieldLevel) bool {
			return semverPattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("step_id", func(fl validator.FieldLevel) bool {
			return stepIDPattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

// ValidatePlan performs schema and cross-field validation on the plan.
func ValidatePlan(plan *Plan) error {
	if plan == nil {
		return pilerrors.NewValidationError("", "plan is nil", nil)
	}

	if err := validatorInstance().Struct(plan); err != nil {
		return convertValidationError(err)
	}

	seen := make(map[string]int, len(plan.Steps))
	known := make(map[string]bool)

	for i := range plan.Steps {
		step := &plan.Steps[i]

		if prev, dup := seen[step.ID]; dup {
			return pilerrors.NewValidationError(
				fieldForStep(i, "id"),
				fmt.Sprintf("duplicate step id %q (first used by step %d)", step.ID, prev), nil)
		}
		seen[step.ID] = i

		if err := validateStepBody(step, i); err != nil {
			return err
		}

		// a step may only reference nodes created by earlier steps
		created := step.CreatedNodeID()
		for _, id := range step.ReferencedNodeIDs() {
			if id == created {
				continue
			}
			if !known[id] {
				return pilerrors.NewValidationError(
					fieldForStep(i, "node_id"),
					fmt.Sprintf("step %q references node %q before any step creates it", step.ID, id), nil)
			}
		}
		if created != "" {
			if known[created] {
				return pilerrors.NewValidationError(
					fieldForStep(i, "node_id"),
					fmt.Sprintf("node %q created more than once", created), nil)
			}
			known[created] = true
		}
	}

	if plan.Settings.AnchorStepID != "" {
		if _, ok := seen[plan.Settings.AnchorStepID]; !ok {
			return pilerrors.NewValidationError("settings.anchor_step",
				fmt.Sprintf("anchor step %q not found in steps", plan.Settings.AnchorStepID), nil)
		}
	}

	return nil
}

func validateStepBody(step *Step, index int) error {
	var body any
	switch step.Type {
	case "create_node":
		body = step.CreateNode
	case "create_and_connect":
		body = step.CreateAndConnect
	case "connect":
		body = step.Connect
	case "set_port_type":
		body = step.SetPortType
	case "scan_settings":
		body = step.ScanSettings
	}

	if body == nil {
		return pilerrors.NewValidationError(
			fieldForStep(index, "type"),
			fmt.Sprintf("step %q has no body for type %q", step.ID, step.Type), nil)
	}
	if err := validatorInstance().Struct(body); err != nil {
		return convertValidationError(err)
	}

	if step.Type == "connect" && step.Connect.From.NodeID == step.Connect.To.NodeID {
		return pilerrors.NewValidationError(
			fieldForStep(index, "to.node_id"),
			fmt.Sprintf("step %q connects node %q to itself", step.ID, step.Connect.From.NodeID), nil)
	}

	return nil
}

func convertValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if ok := asValidationErrors(err, &fieldErrs); ok && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return pilerrors.NewValidationError(
			yamlishFieldName(fe),
			fmt.Sprintf("failed %q constraint", fe.Tag()), err)
	}
	return pilerrors.NewValidationError("", err.Error(), err)
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return false
	}
	*target = ve
	return true
}

func yamlishFieldName(fe validator.FieldError) string {
	parts := strings.Split(fe.Namespace(), ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = camelToSnake(p)
	}
	return strings.Join(parts, ".")
}

func camelToSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func fieldForStep(index int, field string) string {
	return fmt.Sprintf("steps[%d].%s", index, field)
}

package announcement

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edusys/core"
)

var (
	reactionTag  = "reaction"
	reactionText = "invalid reaction type"
)

func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(reactionTag, func(fl validator.FieldLevel) bool {
		return ReactionType(fl.Field().String()).IsValid()
	})
	core.RegisterCustomTranslation(validate, translator, reactionTag, reactionText)
}

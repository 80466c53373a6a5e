package rule

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationErrors 是格式化后的验证错误字典，键为字段路径（使用标签名），值为可读错误信息.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+v[k])
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

// Errors 把 validator 的错误转换为 ValidationErrors，不是校验错误时返回 nil.
func Errors(err error) ValidationErrors {
	var own ValidationErrors
	if errors.As(err, &own) {
		return own
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make(ValidationErrors, len(verrs))
	for _, fe := range verrs {
		out[path(fe)] = message(fe)
	}

	return out
}

// path 去掉顶层结构体名，例如 AppConfig.ingest.max_attempts → ingest.max_attempts.
func path(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}

	return ns
}

func message(fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "len":
		return fmt.Sprintf("must have length %s", fe.Param())
	case "file_ext":
		return "must be a lowercase extension without the leading dot"
	default:
		return fmt.Sprintf("failed %s rule", fe.Tag())
	}
}

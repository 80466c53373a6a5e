// Package rule 提供结构体和字段验证功能的封装，基于 go-playground/validator 实现.
// 标签名为 rule，与 gin 的绑定校验共用同一个引擎.
package rule

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// StatusValues 导入记录的全部状态，ingest_status 规则使用.
const StatusValues = "queued processing completed completed_with_errors failed"

var (
	inst *validator.Validate
	once sync.Once

	extPattern = regexp.MustCompile(`^[a-z0-9]+$`)
)

// initValidator 尝试复用 gin 的 validator 引擎；若不可用则新建.
func initValidator() {
	inst = validator.New()

	if engine := binding.Validator.Engine(); engine != nil {
		if v, ok := engine.(*validator.Validate); ok {
			inst = v
		}
	}

	inst.SetTagName("rule")
	inst.RegisterTagNameFunc(fieldName)

	// 内置规则注册失败只可能是编程错误
	if err := inst.RegisterValidation("file_ext", fileExt); err != nil {
		panic(err)
	}

	inst.RegisterAlias("ingest_status", "oneof="+StatusValues)
}

// fieldName 错误信息使用 form、mapstructure 或 json 标签中的名字.
func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"form", "mapstructure", "json"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}

		if name != "" {
			return name
		}
	}

	return f.Name
}

// fileExt 小写字母或数字组成、不带点的扩展名.
func fileExt(fl validator.FieldLevel) bool {
	return extPattern.MatchString(fl.Field().String())
}

// lazyInit 初始化全局 validator（幂等）.
func lazyInit() {
	once.Do(initValidator)
}

// Engine 返回全局 *validator.Validate，若未初始化则先初始化.
func Engine() *validator.Validate {
	lazyInit()

	return inst
}

// RegisterValidation 代理 RegisterValidation，确保已初始化.
func RegisterValidation(tag string, fn validator.Func, opts ...bool) error {
	lazyInit()

	return inst.RegisterValidation(tag, fn, opts...)
}

// ValidateStruct 对结构体执行完整校验，返回原始 error（可用 Errors 解析）.
func ValidateStruct(s any) error {
	lazyInit()

	return inst.Struct(s)
}

// Check 校验结构体，失败时返回 ValidationErrors.
func Check(s any) error {
	err := ValidateStruct(s)
	if err == nil {
		return nil
	}

	if verrs := Errors(err); verrs != nil {
		return verrs
	}

	return err
}

// ValidateVar 按规则对单个变量校验，例如: ValidateVar("abc", "required,email").
func ValidateVar(field any, tag string) error {
	lazyInit()

	return inst.Var(field, tag)
}

// RegisterAlias 包装 RegisterAlias，便于注册别名规则.
func RegisterAlias(alias, rules string) {
	lazyInit()

	inst.RegisterAlias(alias, rules)
}

package rule_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/yeisme/ingestvault/pkg/rule"
)

type uploadLimits struct {
	MaxFileSizeMB int64  `rule:"gte=1"`
	Topic         string `rule:"required"`
}

func TestValidateStruct(t *testing.T) {
	if rule.Engine() == nil {
		t.Fatal("Engine() returned nil")
	}

	cases := []struct {
		in uploadLimits
		ok bool
	}{
		{uploadLimits{MaxFileSizeMB: 100, Topic: "ingest.file.requested"}, true},
		{uploadLimits{MaxFileSizeMB: 100}, false},
		{uploadLimits{MaxFileSizeMB: 0, Topic: "t"}, false},
	}

	for _, tc := range cases {
		if err := rule.ValidateStruct(tc.in); (err == nil) != tc.ok {
			t.Errorf("ValidateStruct(%+v) = %v, want ok=%v", tc.in, err, tc.ok)
		}
	}
}

func TestValidateVar(t *testing.T) {
	cases := []struct {
		v   any
		tag string
		ok  bool
	}{
		{"completed", "ingest_status", true},
		{"done", "ingest_status", false},
		{"csv", "file_ext", true},
		{".csv", "file_ext", false},
		{"localhost:9000", "hostname_port", true},
		{3, "gte=1", true},
		{0, "gte=1", false},
	}

	for _, tc := range cases {
		if err := rule.ValidateVar(tc.v, tc.tag); (err == nil) != tc.ok {
			t.Errorf("ValidateVar(%v, %q) = %v, want ok=%v", tc.v, tc.tag, err, tc.ok)
		}
	}
}

// TestRegisterValidation 自定义规则注册后可直接使用.
func TestRegisterValidation(t *testing.T) {
	err := rule.RegisterValidation("no_bom", func(fl validator.FieldLevel) bool {
		return !strings.HasPrefix(fl.Field().String(), "\ufeff")
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := rule.ValidateVar("UNIQUE_KEY", "no_bom"); err != nil {
		t.Errorf("plain header rejected: %v", err)
	}

	if err := rule.ValidateVar("\ufeffUNIQUE_KEY", "no_bom"); err == nil {
		t.Error("header with BOM accepted")
	}
}

func TestRegisterAlias(t *testing.T) {
	rule.RegisterAlias("page_limit", "min=1,max=1000")

	if err := rule.ValidateVar(50, "page_limit"); err != nil {
		t.Errorf("50 rejected: %v", err)
	}

	if err := rule.ValidateVar(0, "page_limit"); err == nil {
		t.Error("0 accepted")
	}
}

type listQuery struct {
	Status string   `form:"status" rule:"omitempty,ingest_status"`
	Limit  int      `form:"limit"  rule:"omitempty,min=1,max=1000"`
	Exts   []string `mapstructure:"allowed_extensions" rule:"min=1,dive,file_ext"`
}

// TestCheck_FieldNames 错误以标签名为键，信息可读.
func TestCheck_FieldNames(t *testing.T) {
	err := rule.Check(&listQuery{Status: "bogus", Limit: 5000, Exts: []string{"csv"}})

	var verrs rule.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T %v", err, err)
	}

	if got := verrs["status"]; !strings.Contains(got, "completed_with_errors") {
		t.Errorf("status message = %q", got)
	}

	if got := verrs["limit"]; got != "must be at most 1000" {
		t.Errorf("limit message = %q", got)
	}

	if len(rule.Errors(err)) != 2 {
		t.Errorf("Errors should return the same map, got %v", rule.Errors(err))
	}

	if !strings.HasPrefix(err.Error(), "validation failed: limit ") {
		t.Errorf("error text = %q", err.Error())
	}
}

func TestCheck_FileExt(t *testing.T) {
	if err := rule.Check(&listQuery{Exts: []string{"csv", "txt"}}); err != nil {
		t.Errorf("valid extensions rejected: %v", err)
	}

	for _, ext := range []string{".csv", "CSV", "tar.gz"} {
		if err := rule.Check(&listQuery{Exts: []string{ext}}); err == nil {
			t.Errorf("extension %q should be rejected", ext)
		}
	}

	if err := rule.Check(&listQuery{}); err == nil {
		t.Error("empty extension list should be rejected")
	}

	if rule.Errors(errors.New("plain")) != nil {
		t.Error("non-validation errors should map to nil")
	}
}

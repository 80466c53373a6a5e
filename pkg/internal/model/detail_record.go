package model

import "time"

// PriceMax decimal(10,2) 能表示的最大值.
const PriceMax = 99999999.99

// DetailRecord 归一化后的明细记录，以 unique_key 全局去重，后写覆盖先写.
type DetailRecord struct {
	ID                 uint   `gorm:"primaryKey"                    json:"id"`
	UniqueKey          string `gorm:"size:255;not null;uniqueIndex" json:"unique_key"`
	ProductTitle       string `gorm:"size:1024;not null"            json:"product_title"`
	ProductDescription string `gorm:"type:text;not null"            json:"product_description"`

	StyleNumber    *string  `gorm:"size:255"           json:"style_number"`
	MainframeColor *string  `gorm:"size:255"           json:"mainframe_color"`
	Size           *string  `gorm:"size:64"            json:"size"`
	ColorName      *string  `gorm:"size:255"           json:"color_name"`
	PiecePrice     *float64 `gorm:"type:decimal(10,2)" json:"piece_price"`

	// FileRecordID 最近一次写入该记录的文件
	FileRecordID uint        `gorm:"not null;index"            json:"file_record_id"`
	FileRecord   *FileRecord `gorm:"foreignKey:FileRecordID"   json:"file_record,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 表名.
func (DetailRecord) TableName() string { return "file_details" }

// UpsertColumns 冲突时覆盖的列.
var UpsertColumns = []string{
	"product_title",
	"product_description",
	"style_number",
	"mainframe_color",
	"size",
	"color_name",
	"piece_price",
	"file_record_id",
	"updated_at",
}

// AllModels 需要迁移的全部模型.
func AllModels() []any {
	return []any{&FileRecord{}, &DetailRecord{}}
}

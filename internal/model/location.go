package model

// Building 教学楼：位置层级：block → building → floor → room
type Building struct {
	BuildingID string `gorm:"type:varchar(36);primaryKey"                  json:"building_id"`
	Name       string `gorm:"type:varchar(100);not null;uniqueIndex"       json:"name"`
	Block      string `gorm:"type:varchar(50);not null;default:'';index"   json:"block"`
	BaseModel
}

// TableName 指定表名
func (Building) TableName() string { return "buildings" }

// Room 教室。不带版本号：教室结构编辑不经过并发闸门
type Room struct {
	RoomID     string `gorm:"type:varchar(36);primaryKey"                      json:"room_id"`
	BuildingID string `gorm:"type:varchar(36);not null;index"                  json:"building_id"`
	Name       string `gorm:"type:varchar(100);not null"                       json:"name"`
	Floor      int    `gorm:"not null;default:0"                               json:"floor"`
	Rows       int    `gorm:"column:row_count;not null"                        json:"rows"`
	Cols       int    `gorm:"column:col_count;not null"                        json:"cols"`
	Capacity   int    `gorm:"not null"                                         json:"capacity"`
	AisleEvery int    `gorm:"not null;default:0"                               json:"aisle_every"` // 每组列数，0 表示整行为一组
	Available  bool   `gorm:"not null;default:true"                            json:"available"`
	BaseModel

	Building *Building `gorm:"foreignKey:BuildingID;references:BuildingID" json:"building,omitempty"`
}

// TableName 指定表名
func (Room) TableName() string { return "rooms" }

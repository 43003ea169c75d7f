package model

// Student 学生：对应 students
// 座位归属由 Seat.StudentID 反向记录，学生记录本身不随座位变更而修改
type Student struct {
	StudentID          string `gorm:"type:varchar(36);primaryKey"      json:"id"`
	Name               string `gorm:"type:varchar(100);not null"       json:"name"`
	Branch             string `gorm:"type:varchar(100);not null;index" json:"branch"`
	AccessibilityNeeds Tags   `json:"accessibility_needs"`
	Tags               Tags   `json:"tags"`
	BaseModel
}

// TableName 指定表名
func (Student) TableName() string { return "students" }

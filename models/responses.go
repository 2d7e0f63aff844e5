package models

// UserResponse 用户响应结构体
type UserResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Nationality string `json:"nationality"`
	Role        string `json:"role"`
	AvatarURL   string `json:"avatarUrl"`
}

// CategoryCountResponse 日统计中单个分类的计数
type CategoryCountResponse struct {
	CategoryID   *string `json:"categoryId"`
	CategoryName string  `json:"categoryName"`
	Count        int     `json:"count"`
}

// DailyStatResponse 单日统计响应结构体，Date 为UTC自然日（YYYY-MM-DD）
type DailyStatResponse struct {
	Date                    string                  `json:"date"`
	CompletedTasks          int                     `json:"completedTasks"`
	CompletedOfEachCategory []CategoryCountResponse `json:"completedOfEachCategory"`
	GivenUpTasks            int                     `json:"givenUpTasks"`
	GivenUpOfEachCategory   []CategoryCountResponse `json:"givenUpOfEachCategory"`
}

// StatResponse 统计总账响应结构体，DailyStats 按日期升序
type StatResponse struct {
	UserID          string              `json:"userId"`
	TotalTasks      int                 `json:"totalTasks"`
	PendingTasks    int                 `json:"pendingTasks"`
	InProgressTasks int                 `json:"inProgressTasks"`
	CompletedTasks  int                 `json:"completedTasks"`
	GivenUpTasks    int                 `json:"givenUpTasks"`
	DailyStats      []DailyStatResponse `json:"dailyStats"`
}

// ToResponse 去除敏感字段的用户视图
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Nationality: u.Nationality,
		Role:        u.Role,
		AvatarURL:   u.AvatarURL,
	}
}

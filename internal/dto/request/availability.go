package request

type SetAvailabilityRequest struct {
	Dates       []string `json:"dates" validate:"required,min=1,max=366,dive,datetime=2006-01-02"`
	IsAvailable *bool    `json:"is_available" validate:"required"`
}

package entity

// Equipment is an installed device as known to the ERP.
type Equipment struct {
	SerialNumber string `json:"sernum"`
	PartName     string `json:"partname"`
	PartDesc     string `json:"partdes"`
	CustomerID   string `json:"custname"`
	CustomerName string `json:"cdes"`
	Phone        string `json:"phonenum"`
	Status       string `json:"statusname"`
	FamilyName   string `json:"familyname"`
	FamilyDesc   string `json:"familydes"`
	FacilityName string `json:"facilityname"`
	FacilityDesc string `json:"facilitydes"`
}

// CustomerInfo is what prior interactions tell us about a phone number.
type CustomerInfo struct {
	Name         string `json:"name"`
	CustomerID   string `json:"customer_id"`
	DeviceNumber string `json:"device_id"`
}

func (c *CustomerInfo) IsEmpty() bool {
	return c == nil || (c.Name == "" && c.CustomerID == "" && c.DeviceNumber == "")
}

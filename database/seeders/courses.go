package seeders

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/carepath-academy/carepath/app/models"
)

var starterCourses = []models.Course{
	{
		Name:        "Basic Life Support (BLS)",
		Description: "CPR, AED use and choking relief for healthcare providers.",
		Price:       decimal.RequireFromString("89.00"),
		Duration:    "4 hours",
		Status:      models.CourseActive,
	},
	{
		Name:        "Certified Nursing Assistant",
		Description: "State-approved CNA programme with supervised clinical hours.",
		Price:       decimal.RequireFromString("1250.00"),
		Duration:    "6 weeks",
		Status:      models.CourseActive,
	},
	{
		Name:        "Phlebotomy Technician",
		Description: "Venipuncture, specimen handling and safety.",
		Price:       decimal.RequireFromString("950.00"),
		Duration:    "8 weeks",
		Status:      models.CourseActive,
	},
	{
		Name:        "Medication Aide",
		Description: "Safe medication administration in long-term care.",
		Price:       decimal.RequireFromString("700.00"),
		Duration:    "3 weeks",
		Status:      models.CourseDraft,
	},
}

// seedCourses inserts the starter catalogue, skipping names that exist.
func seedCourses(db *gorm.DB) error {
	for _, c := range starterCourses {
		c := c
		if err := db.Where(models.Course{Name: c.Name}).FirstOrCreate(&c).Error; err != nil {
			return err
		}
	}
	return nil
}

package controllers

import (
	"sort"
	"strconv"

	"github.com/graphql-go/graphql"

	"github.com/carepath-academy/carepath/app/repositories"
	"github.com/carepath-academy/carepath/app/services"
	gql "github.com/carepath-academy/carepath/pkg/graphql"
	"github.com/carepath-academy/carepath/pkg/orm"
)

var statusCountType = graphql.NewObject(graphql.ObjectConfig{
	Name: "StatusCount",
	Fields: graphql.Fields{
		"status": &graphql.Field{Type: graphql.String},
		"count":  &graphql.Field{Type: graphql.Int},
	},
})

var paymentType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Payment",
	Fields: graphql.Fields{
		"sessionId":      &graphql.Field{Type: graphql.String},
		"userId":         &graphql.Field{Type: graphql.Int},
		"source":         &graphql.Field{Type: graphql.String},
		"amountTotal":    &graphql.Field{Type: graphql.Int},
		"completedCount": &graphql.Field{Type: graphql.Int},
		"createdAt":      &graphql.Field{Type: graphql.DateTime},
	},
})

var statsType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Stats",
	Fields: graphql.Fields{
		"users":          &graphql.Field{Type: graphql.Int},
		"admins":         &graphql.Field{Type: graphql.Int},
		"revenue":        &graphql.Field{Type: graphql.String},
		"courses":        &graphql.Field{Type: graphql.NewList(statusCountType)},
		"enrollments":    &graphql.Field{Type: graphql.NewList(statusCountType)},
		"recentPayments": &graphql.Field{Type: graphql.NewList(paymentType)},
	},
})

var enrollmentType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Enrollment",
	Fields: graphql.Fields{
		"id":            &graphql.Field{Type: graphql.Int},
		"studentName":   &graphql.Field{Type: graphql.String},
		"email":         &graphql.Field{Type: graphql.String},
		"course":        &graphql.Field{Type: graphql.String},
		"paymentStatus": &graphql.Field{Type: graphql.String},
		"paymentAmount": &graphql.Field{Type: graphql.String},
		"createdAt":     &graphql.Field{Type: graphql.DateTime},
	},
})

func statusCounts(m map[string]int64) []map[string]any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, map[string]any{"status": k, "count": int(m[k])})
	}
	return out
}

// NewAdminSchema exposes dashboard reads over GraphQL:
//
//	{ stats { users revenue enrollments { status count } } }
//	{ enrollments(status: "PENDING", limit: 5) { id studentName course } }
func NewAdminSchema(admin *services.AdminService, enrollments *services.EnrollmentService) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"stats": &graphql.Field{
				Type: statsType,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					st, err := admin.Stats(p.Context)
					if err != nil {
						return nil, err
					}
					payments := make([]map[string]any, 0, len(st.RecentPayments))
					for _, pc := range st.RecentPayments {
						payments = append(payments, map[string]any{
							"sessionId":      pc.SessionID,
							"userId":         int(pc.UserID),
							"source":         pc.Source,
							"amountTotal":    int(pc.AmountTotal),
							"completedCount": pc.CompletedCount,
							"createdAt":      pc.CreatedAt,
						})
					}
					return map[string]any{
						"users":          int(st.Users),
						"admins":         int(st.Admins),
						"revenue":        st.Revenue.StringFixed(2),
						"courses":        statusCounts(st.Courses),
						"enrollments":    statusCounts(st.Enrollments),
						"recentPayments": payments,
					}, nil
				},
			},
			"enrollments": &graphql.Field{
				Type: graphql.NewList(enrollmentType),
				Args: graphql.FieldConfigArgument{
					"status": &graphql.ArgumentConfig{Type: graphql.String},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					status, _ := p.Args["status"].(string)
					limit, _ := p.Args["limit"].(int)
					list, _, err := enrollments.List(p.Context,
						repositories.EnrollmentFilter{Status: status},
						orm.ParsePage("1", strconv.Itoa(limit)))
					if err != nil {
						return nil, err
					}
					out := make([]map[string]any, 0, len(list))
					for _, e := range list {
						row := map[string]any{
							"id":            int(e.ID),
							"studentName":   e.StudentName,
							"email":         e.Email,
							"paymentStatus": e.PaymentStatus,
							"createdAt":     e.CreatedAt,
						}
						if e.Course != nil {
							row["course"] = e.Course.Name
						}
						if e.PaymentAmount.Valid {
							row["paymentAmount"] = e.PaymentAmount.Decimal.StringFixed(2)
						}
						out = append(out, row)
					}
					return out, nil
				},
			},
		},
	})
	return gql.NewSchema(query)
}

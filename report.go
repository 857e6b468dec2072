package crm

import (
	"context"
	"sort"
)

const topCustomers = 5

// StatusTotal is the number and summed value of leads in one status.
type StatusTotal struct {
	Status Status  `db:"status"`
	Count  int     `db:"count"`
	Value  float64 `db:"value"`
}

// CustomerTotal is the number and summed value of one customer's leads.
type CustomerTotal struct {
	CustomerID string  `json:"customerId" db:"customer_id"`
	Name       string  `json:"name" db:"name"`
	Count      int     `json:"count" db:"count"`
	Value      float64 `json:"value" db:"value"`
}

type StatusBreakdown struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
	Value      float64 `json:"value"`
}

// Summary is the pipeline report for one owner.
type Summary struct {
	TotalCustomers      int                        `json:"totalCustomers"`
	TotalLeads          int                        `json:"totalLeads"`
	TotalValue          float64                    `json:"totalValue"`
	ConversionRate      float64                    `json:"conversionRate"`
	AvgLeadValue        float64                    `json:"avgLeadValue"`
	ConvertedValue      float64                    `json:"convertedValue"`
	PipelineValue       float64                    `json:"pipelineValue"`
	LeadsPerCustomer    float64                    `json:"leadsPerCustomer"`
	StatusBreakdown     map[Status]StatusBreakdown `json:"statusBreakdown"`
	TopCustomersByLeads []CustomerTotal            `json:"topCustomersByLeads"`
	TopCustomersByValue []CustomerTotal            `json:"topCustomersByValue"`
}

// Summarize folds per-status and per-customer totals into a Summary.
// Percentages are in the 0-100 range and are zero when there are no leads.
func Summarize(totalCustomers int, statuses []StatusTotal, customers []CustomerTotal) Summary {
	s := Summary{
		TotalCustomers:  totalCustomers,
		StatusBreakdown: make(map[Status]StatusBreakdown, len(Statuses)),
	}

	byStatus := make(map[Status]StatusTotal, len(statuses))
	for _, st := range statuses {
		byStatus[st.Status] = st
		s.TotalLeads += st.Count
		s.TotalValue += st.Value
	}

	for _, status := range Statuses {
		st := byStatus[status]
		sb := StatusBreakdown{Count: st.Count, Value: st.Value}
		if s.TotalLeads > 0 {
			sb.Percentage = float64(st.Count) / float64(s.TotalLeads) * 100
		}
		s.StatusBreakdown[status] = sb
	}

	if s.TotalLeads > 0 {
		s.ConversionRate = s.StatusBreakdown[StatusConverted].Percentage
		s.AvgLeadValue = s.TotalValue / float64(s.TotalLeads)
	}
	if totalCustomers > 0 {
		s.LeadsPerCustomer = float64(s.TotalLeads) / float64(totalCustomers)
	}
	s.ConvertedValue = s.StatusBreakdown[StatusConverted].Value
	s.PipelineValue = s.StatusBreakdown[StatusNew].Value + s.StatusBreakdown[StatusContacted].Value

	s.TopCustomersByLeads = topBy(customers, func(a, b CustomerTotal) bool { return a.Count > b.Count })
	s.TopCustomersByValue = topBy(customers, func(a, b CustomerTotal) bool { return a.Value > b.Value })

	return s
}

func topBy(in []CustomerTotal, less func(a, b CustomerTotal) bool) []CustomerTotal {
	out := make([]CustomerTotal, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	if len(out) > topCustomers {
		out = out[:topCustomers]
	}
	return out
}

type ReportService interface {
	Summary(ctx context.Context, ownerID string) (Summary, error)
}

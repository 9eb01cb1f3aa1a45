package params

// QueryParams carries common list-endpoint paging parameters.
type QueryParams struct {
	PageNumber int `query:"page_number"`
	PageSize   int `query:"page_size"`
}

func (p *QueryParams) Normalize() {
	if p.PageNumber < 1 {
		p.PageNumber = 1
	}
	if p.PageSize < 1 || p.PageSize > 100 {
		p.PageSize = 20
	}
}

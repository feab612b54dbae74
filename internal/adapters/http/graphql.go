package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	lightRangeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "LightRange",
		Fields: graphql.Fields{
			"light_identifier": &graphql.Field{Type: graphql.String},
			"color":            &graphql.Field{Type: graphql.String},
			"start_time":       &graphql.Field{Type: graphql.String},
			"end_time":         &graphql.Field{Type: graphql.String},
			"day":              &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"trafficLights": &graphql.Field{
				Type:        graphql.NewList(geoPointType),
				Description: "Known traffic light coordinates",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Lights.Coordinates(), nil
				},
			},
			"rangesForLight": &graphql.Field{
				Type:        graphql.NewList(lightRangeType),
				Description: "Aggregated color ranges of a light for one day (default: previous UTC day)",
				Args: graphql.FieldConfigArgument{
					"light_identifier": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"day":              &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lightID := p.Args["light_identifier"].(string)

					var day time.Time
					if raw, ok := p.Args["day"].(string); ok && raw != "" {
						parsed, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
						if err != nil {
							return nil, err
						}
						day = parsed
					}

					ranges, err := deps.Ranges.RangesFor(p.Context, lightID, day)
					if err != nil {
						return nil, err
					}

					// Convert to maps so timestamps are formatted consistently
					var result []map[string]interface{}
					for _, r := range ranges {
						result = append(result, map[string]interface{}{
							"light_identifier": r.LightIdentifier,
							"color":            string(r.Color),
							"start_time":       r.StartTime.UTC().Format(time.RFC3339),
							"end_time":         r.EndTime.UTC().Format(time.RFC3339),
							"day":              r.Day.Format("2006-01-02"),
						})
					}
					return result, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}

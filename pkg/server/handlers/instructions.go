package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// apiInstructions is returned from the root path so the service documents
// itself the way the original deployment did.
var apiInstructions = gin.H{
	"description": "Document Reranking API - ranks documents based on their relevance to a question",
	"endpoints": gin.H{
		"/": gin.H{
			"method":      "GET",
			"description": "Returns these API usage instructions",
		},
		"/rank": gin.H{
			"method":      "POST",
			"description": "Ranks documents based on relevance to a question",
			"request_body": gin.H{
				"question":  "string - the question to match documents against",
				"documents": "array of strings - the documents to rank",
				"top_k":     "integer (optional, default=3) - number of top matches to return",
			},
			"response": gin.H{
				"ranked_documents": "array of objects containing document text and relevance score",
				"execution_time":   "float - time taken to process the request in seconds",
			},
			"example_request": gin.H{
				"question": "What is a panda?",
				"documents": []string{
					"The giant panda is a bear native to China.",
					"Python is a programming language.",
					"Pandas eat bamboo as their main food source.",
				},
				"top_k": 2,
			},
		},
		"/health": gin.H{
			"method":      "GET",
			"description": "Reports whether a model is loaded plus device inventory",
		},
		"/unload": gin.H{
			"method":      "POST",
			"description": "Releases the loaded model and reclaims memory",
		},
		"/selftest": gin.H{
			"method":      "GET",
			"description": "Ranks a built-in example to verify the scoring path",
		},
	},
}

// Instructions handles GET /.
func Instructions(c *gin.Context) {
	c.JSON(http.StatusOK, apiInstructions)
}

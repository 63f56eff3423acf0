package router

import (
	"net/http"
	"zhutan/internal/handlers"
	"zhutan/internal/middleware"
	"zhutan/internal/services"

	"github.com/gin-gonic/gin"
)

// Services 路由依赖的业务服务
type Services struct {
	Discussions *services.DiscussionService
	Comments    *services.CommentService
	Votes       *services.VoteService
	Polls       *services.PollService
	Engagement  *services.EngagementService
	Directory   services.Directory
}

func RegisterRoutes(r *gin.Engine, s Services) {
	// Handlers
	discussionHandler := handlers.NewDiscussionHandler(s.Discussions, s.Engagement)
	commentHandler := handlers.NewCommentHandler(s.Comments, s.Engagement)
	voteHandler := handlers.NewVoteHandler(s.Votes)
	pollHandler := handlers.NewPollHandler(s.Polls)
	bookmarkHandler := handlers.NewBookmarkHandler(s.Engagement)
	categoryHandler := handlers.NewCategoryHandler(s.Directory)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	// 公共路由 (Public Routes)
	api.GET("/categories", categoryHandler.List)                    // 分类列表
	api.GET("/discussions", discussionHandler.List)                 // 讨论列表
	api.GET("/discussions/:id", discussionHandler.Detail)           // 讨论详情
	api.POST("/discussions/:id/view", discussionHandler.RecordView) // 浏览上报，匿名也计数
	api.GET("/discussions/:id/comments", commentHandler.List)       // 评论列表
	api.GET("/discussions/:id/poll", pollHandler.Get)               // 投票详情
	api.GET("/polls/:id/voters", pollHandler.Voters)                // 投票人（非匿名投票）
	api.GET("/comments/:id", commentHandler.Get)                    // 单条评论
	api.GET("/comments/:id/subtree", commentHandler.Subtree)        // 评论子树

	// 受保护路由 (Protected Routes)
	authorized := api.Group("")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/discussions", discussionHandler.Create)                  // 发布讨论
		authorized.PUT("/discussions/:id", discussionHandler.Update)               // 编辑讨论
		authorized.DELETE("/discussions/:id", discussionHandler.Delete)            // 删除讨论
		authorized.POST("/discussions/:id/vote", voteHandler.VoteDiscussion)       // 点赞/取消点赞
		authorized.POST("/discussions/:id/bookmark", bookmarkHandler.Toggle)       // 收藏/取消收藏
		authorized.POST("/discussions/:id/report", discussionHandler.Report)       // 举报讨论
		authorized.POST("/discussions/:id/comments", commentHandler.Create)        // 发表评论
		authorized.POST("/discussions/:id/poll", pollHandler.Create)               // 创建投票
		authorized.POST("/polls/:id/votes", pollHandler.Cast)                      // 提交投票
		authorized.POST("/polls/:id/options/:optionId/toggle", pollHandler.Toggle) // 切换选项
		authorized.PUT("/comments/:id", commentHandler.Update)                     // 编辑评论
		authorized.DELETE("/comments/:id", commentHandler.Delete)                  // 删除评论
		authorized.POST("/comments/:id/vote", voteHandler.VoteComment)             // 评论投票
		authorized.POST("/comments/:id/report", commentHandler.Report)             // 举报评论
		authorized.GET("/me/bookmarks", bookmarkHandler.List)                      // 我的收藏
	}
}
